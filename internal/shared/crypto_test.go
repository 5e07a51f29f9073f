package shared

import "testing"

func TestCipher(t *testing.T) {
	t.Run("NewCipher", func(t *testing.T) {
		t.Run("Empty Key", func(t *testing.T) {
			if _, err := NewCipher(""); err == nil {
				t.Error("expected error for empty secret key")
			}
		})

		t.Run("Any Key Length", func(t *testing.T) {
			// The key is hashed, so arbitrary secret lengths work.
			for _, secret := range []string{"a", "sixteen-byte-key", "a much longer application secret key"} {
				if _, err := NewCipher(secret); err != nil {
					t.Errorf("expected no error for secret %q, got %v", secret, err)
				}
			}
		})
	})

	t.Run("Round Trip", func(t *testing.T) {
		cipher, err := NewCipher("app-secret")
		if err != nil {
			t.Fatalf("failed to create cipher: %v", err)
		}

		sealed, err := cipher.Encrypt("refresh-token-value")
		if err != nil {
			t.Fatalf("encrypt failed: %v", err)
		}
		if sealed == "refresh-token-value" {
			t.Error("ciphertext must differ from plaintext")
		}

		plain, err := cipher.Decrypt(sealed)
		if err != nil {
			t.Fatalf("decrypt failed: %v", err)
		}
		if plain != "refresh-token-value" {
			t.Errorf("expected round trip, got %q", plain)
		}
	})

	t.Run("Empty Value Passthrough", func(t *testing.T) {
		cipher, _ := NewCipher("app-secret")

		sealed, err := cipher.Encrypt("")
		if err != nil || sealed != "" {
			t.Errorf("expected empty passthrough, got %q, %v", sealed, err)
		}
		plain, err := cipher.Decrypt("")
		if err != nil || plain != "" {
			t.Errorf("expected empty passthrough, got %q, %v", plain, err)
		}
	})

	t.Run("Wrong Key", func(t *testing.T) {
		first, _ := NewCipher("secret-one")
		second, _ := NewCipher("secret-two")

		sealed, err := first.Encrypt("value")
		if err != nil {
			t.Fatalf("encrypt failed: %v", err)
		}
		if _, err := second.Decrypt(sealed); err == nil {
			t.Error("expected decryption with wrong key to fail")
		}
	})

	t.Run("Garbage Input", func(t *testing.T) {
		cipher, _ := NewCipher("app-secret")

		if _, err := cipher.Decrypt("not base64!!!"); err == nil {
			t.Error("expected error for invalid base64")
		}
		if _, err := cipher.Decrypt("dG9vc2hvcnQ="); err == nil {
			t.Error("expected error for truncated ciphertext")
		}
	})
}
