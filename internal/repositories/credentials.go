// package repositories provides the persistence layer for stored credentials.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rythmize/rythmize/internal/models"
	"github.com/rythmize/rythmize/internal/shared"
)

// CredentialRepository stores per-user Spotify credentials in SQLite.
//
// The refresh token is encrypted before every write and decrypted after
// every read; nothing else in the codebase touches ciphertext. Token,
// refresh token and expiry are always written in a single statement so a
// reader can never observe a token without its matching expiry.
type CredentialRepository struct {
	db     *sql.DB
	cipher *shared.Cipher
}

// NewCredentialRepository creates a repository over the given database.
func NewCredentialRepository(db *sql.DB, cipher *shared.Cipher) *CredentialRepository {
	return &CredentialRepository{db: db, cipher: cipher}
}

// Load retrieves a user's credential. An unknown user gets an empty
// credential, not an error; registration creates the row lazily on the
// first Save.
func (r *CredentialRepository) Load(ctx context.Context, userID string) (*models.Credential, error) {
	query := `
		SELECT access_token, refresh_token, expires_at
		FROM spotify_credentials
		WHERE user_id = ?
	`

	var (
		accessToken  sql.NullString
		refreshToken sql.NullString
		expiresAt    sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, userID).Scan(&accessToken, &refreshToken, &expiresAt)
	if err == sql.ErrNoRows {
		return &models.Credential{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query credential: %w", err)
	}

	credential := &models.Credential{UserID: userID, AccessToken: accessToken.String}
	if expiresAt.Valid {
		credential.ExpiresAt = expiresAt.Time
	}

	if refreshToken.String != "" {
		plain, err := r.cipher.Decrypt(refreshToken.String)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
		}
		credential.RefreshToken = plain
	}

	return credential, nil
}

// Save upserts a user's credential. All three token fields land in one
// statement; concurrent writers get last-writer-wins.
func (r *CredentialRepository) Save(ctx context.Context, credential *models.Credential) error {
	if credential.UserID == "" {
		return fmt.Errorf("%w: credential has no user id", shared.ErrInvalidInput)
	}

	sealed, err := r.cipher.Encrypt(credential.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	now := time.Now()
	query := `
		INSERT INTO spotify_credentials (user_id, access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`

	var expiresAt any
	if !credential.ExpiresAt.IsZero() {
		expiresAt = credential.ExpiresAt
	}

	if _, err := r.db.ExecContext(ctx, query, credential.UserID, credential.AccessToken, sealed, expiresAt, now, now); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	return nil
}

// Delete removes a user's credential, for account deletion.
func (r *CredentialRepository) Delete(ctx context.Context, userID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM spotify_credentials WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("no credential for user: %s", userID)
	}

	return nil
}
