package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mkalinin/classhub/internal/apperrors"
	"github.com/mkalinin/classhub/internal/models"
	"github.com/mkalinin/classhub/internal/repository"
)

type UserRepo struct {
	DB DBTX
}

const createUser = `-- name: CreateUser
INSERT INTO users (id, email, full_name, password_hash, role, institution_id)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at, email, full_name, password_hash, role, enabled, tfa_secret, tfa_enabled, institution_id
`

func (r *UserRepo) CreateUser(ctx context.Context, arg repository.CreateUserParams) (models.User, error) {
	rows, _ := r.DB.Query(ctx, createUser, uuid.New(), arg.Email, arg.FullName, arg.HashedPassword, arg.Role, arg.InstitutionID)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return user, apperrors.ErrUserAlreadyExists
		}

		return user, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

const getUserByID = `-- name: GetUserByID
SELECT id, created_at, email, full_name, password_hash, role, enabled, tfa_secret, tfa_enabled, institution_id
FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, userID)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

const getUserByEmail = `-- name: GetUserByEmail
SELECT id, created_at, email, full_name, password_hash, role, enabled, tfa_secret, tfa_enabled, institution_id
FROM users
WHERE email = $1
`

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByEmail, email)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

const updatePassword = `-- name: UpdatePassword
UPDATE users
SET password_hash = $2
WHERE id = $1
`

func (r *UserRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error {
	tag, err := r.DB.Exec(ctx, updatePassword, userID, hashedPassword)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

const setTFA = `-- name: SetTFA
UPDATE users
SET tfa_secret = $2, tfa_enabled = $3
WHERE id = $1
`

func (r *UserRepo) SetTFA(ctx context.Context, userID uuid.UUID, secret *string, enabled bool) error {
	tag, err := r.DB.Exec(ctx, setTFA, userID, secret, enabled)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

const setEnabled = `-- name: SetEnabled
UPDATE users
SET enabled = $2
WHERE id = $1
`

func (r *UserRepo) SetEnabled(ctx context.Context, userID uuid.UUID, enabled bool) error {
	tag, err := r.DB.Exec(ctx, setEnabled, userID, enabled)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.CreatedAt, &u.Email, &u.FullName, &u.HashedPassword, &u.Role, &u.Enabled, &u.TFASecret, &u.TFAEnabled, &u.InstitutionID)
	return u, err
}
