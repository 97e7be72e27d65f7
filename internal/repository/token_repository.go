package repository

import (
    "context"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/mano-pro/internal/model"
)

// TokenRepo persists and validates refresh tokens by their SHA-256 hash.
type TokenRepo struct{ db *DB }

func NewTokenRepo(db *DB) *TokenRepo { return &TokenRepo{db: db} }

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error {
    _, err := r.db.conn(ctx).ExecContext(ctx,
        `INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
        uuid.NewString(), userID, tokenHash, exp, time.Now().UTC())
    return err
}

// ValidateRefresh returns the owner of a non-revoked, non-expired token.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (string, error) {
    var t model.RefreshToken
    err := r.db.conn(ctx).GetContext(ctx, &t,
        `SELECT id, user_id, token_hash, expires_at, revoked_at, created_at
         FROM refresh_tokens WHERE token_hash = ? LIMIT 1`, tokenHash)
    if err != nil {
        return "", notFound(err)
    }
    if t.RevokedAt != nil || time.Now().UTC().After(t.ExpiresAt) {
        return "", ErrNotFound
    }
    return t.UserID, nil
}

// RevokeByHash marks a token as revoked. ErrNotFound means the token was
// unknown or already revoked, so of two concurrent rotations only one wins.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
    return affected(r.db.conn(ctx).ExecContext(ctx,
        `UPDATE refresh_tokens SET revoked_at = ? WHERE token_hash = ? AND revoked_at IS NULL`,
        time.Now().UTC(), tokenHash))
}

// RevokeAllForUser revokes every active token of the user.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID string) error {
    _, err := r.db.conn(ctx).ExecContext(ctx,
        `UPDATE refresh_tokens SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL`,
        time.Now().UTC(), userID)
    return err
}
