package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/prendaria/backoffice/internal/database"
)

// TokenRevocationRepository keeps the blacklist of revoked session tokens.
type TokenRevocationRepository struct {
	db *database.DB
}

func NewTokenRevocationRepository(db *database.DB) *TokenRevocationRepository {
	return &TokenRevocationRepository{db: db}
}

// RevokeToken adds a single token to the revocation blacklist
func (r *TokenRevocationRepository) RevokeToken(ctx context.Context, jti, userID, tokenType string, expiresAt time.Time, reason string) error {
	query := `
		INSERT INTO revoked_tokens (id, jti, user_id, token_type, expires_at, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	id := uuid.New().String()
	_, err := r.db.Pool.Exec(ctx, query, id, jti, userID, tokenType, expiresAt, reason)

	return database.MapPostgresError(err)
}

// IsTokenRevoked checks the blacklist, either for the specific JTI or for a
// blanket revoke-all entry newer than the token's issue time.
func (r *TokenRevocationRepository) IsTokenRevoked(ctx context.Context, jti, userID string, issuedAt time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM revoked_tokens
			WHERE jti = $1
			   OR (token_type = 'all' AND user_id = $2 AND revoked_at > $3)
		)
	`

	var exists bool
	err := r.db.Pool.QueryRow(ctx, query, jti, userID, issuedAt).Scan(&exists)
	if err != nil {
		return false, database.MapPostgresError(err)
	}

	return exists, nil
}

// RevokeAllUserTokens inserts a blanket revocation: every token issued to
// the user before this moment is rejected by IsTokenRevoked.
func (r *TokenRevocationRepository) RevokeAllUserTokens(ctx context.Context, userID, reason string) error {
	query := `
		INSERT INTO revoked_tokens (id, jti, user_id, token_type, expires_at, reason, revoked_at)
		VALUES ($1, $2, $3, 'all', $4, $5, $6)
	`

	// Truncated to the second so tokens minted immediately after the
	// revocation (JWT iat has second precision) are not swept up by it.
	now := time.Now().Truncate(time.Second)
	// Blanket entries only need to outlive the longest-lived token.
	expiresAt := now.Add(8 * 24 * time.Hour)
	jti := "revoke-all-" + uuid.New().String()

	_, err := r.db.Pool.Exec(ctx, query, uuid.New().String(), jti, userID, expiresAt, reason, now)
	return database.MapPostgresError(err)
}

// CleanupExpiredTokens removes blacklist rows whose tokens have expired on
// their own. Called periodically by the background cleanup manager.
func (r *TokenRevocationRepository) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	query := `DELETE FROM revoked_tokens WHERE expires_at < $1`

	result, err := r.db.Pool.Exec(ctx, query, time.Now())
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}
