package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mkalinin/classhub/internal/apperrors"
	"github.com/mkalinin/classhub/internal/models"
)

type TokenRepo struct {
	DB DBTX
}

const saveToken = `-- name: SaveToken
INSERT INTO tokens (id, user_id, token, mode, type, revoked, expired, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, user_id, token, mode, type, revoked, expired, created_at, expires_at
`

func (r *TokenRepo) Save(ctx context.Context, token models.TokenRecord) (models.TokenRecord, error) {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, saveToken,
		token.ID, token.UserID, token.Token, token.Mode, token.Type,
		token.Revoked, token.Expired, token.CreatedAt, token.ExpiresAt,
	)
	saved, err := pgx.CollectOneRow(rows, rowToToken)
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}

	return saved, nil
}

const getToken = `-- name: GetToken
SELECT id, user_id, token, mode, type, revoked, expired, created_at, expires_at
FROM tokens
WHERE token = $1
`

// Get returns the record even if it is revoked or expired:
// the caller decides what the flags mean
func (r *TokenRepo) Get(ctx context.Context, tokenString string) (models.TokenRecord, error) {
	rows, _ := r.DB.Query(ctx, getToken, tokenString)
	token, err := pgx.CollectOneRow(rows, rowToToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, apperrors.ErrTokenNotFound
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const getTokenOwner = `-- name: GetTokenOwner
SELECT u.id, u.created_at, u.email, u.full_name, u.password_hash, u.role, u.enabled, u.tfa_secret, u.tfa_enabled, u.institution_id
FROM tokens t
JOIN users u ON u.id = t.user_id
WHERE t.token = $1
`

func (r *TokenRepo) GetOwner(ctx context.Context, tokenString string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getTokenOwner, tokenString)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrTokenNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

const revokeAll = `-- name: RevokeAll
UPDATE tokens
SET revoked = true
WHERE user_id = $1 AND mode = ANY($2) AND NOT revoked
`

// RevokeAll is idempotent: tokens revoked already are left untouched,
// a user with no matching tokens is a no-op
func (r *TokenRepo) RevokeAll(ctx context.Context, userID uuid.UUID, modes []models.TokenMode) (int64, error) {
	names := make([]string, 0, len(modes))
	for _, m := range modes {
		names = append(names, string(m))
	}

	tag, err := r.DB.Exec(ctx, revokeAll, userID, names)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return tag.RowsAffected(), nil
}

const markExpired = `-- name: MarkExpired
UPDATE tokens
SET expired = true
WHERE token = $1
`

func (r *TokenRepo) MarkExpired(ctx context.Context, tokenString string) error {
	tag, err := r.DB.Exec(ctx, markExpired, tokenString)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrTokenNotFound
	}
	return nil
}

func rowToToken(row pgx.CollectableRow) (models.TokenRecord, error) {
	var t models.TokenRecord
	err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.Mode, &t.Type, &t.Revoked, &t.Expired, &t.CreatedAt, &t.ExpiresAt)
	return t, err
}
