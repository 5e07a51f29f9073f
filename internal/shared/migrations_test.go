package shared

import "testing"

func TestMigrations(t *testing.T) {
	t.Run("RunMigrations", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var name string
		err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='spotify_credentials'").Scan(&name)
		if err != nil {
			t.Fatalf("expected spotify_credentials table: %v", err)
		}

		t.Run("Idempotent", func(t *testing.T) {
			if err := RunMigrations(db); err != nil {
				t.Errorf("expected second run to be a no-op, got %v", err)
			}
		})
	})

	t.Run("RollbackMigration", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to migrate: %v", err)
		}
		if err := RollbackMigration(db); err != nil {
			t.Fatalf("expected rollback to succeed, got %v", err)
		}

		var name string
		err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='spotify_credentials'").Scan(&name)
		if err == nil {
			t.Error("expected spotify_credentials table to be dropped")
		}

		if err := RollbackMigration(db); err == nil {
			t.Error("expected error when nothing left to roll back")
		}
	})
}
