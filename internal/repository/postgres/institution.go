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
)

type InstitutionRepo struct {
	DB DBTX
}

const createInstitution = `-- name: CreateInstitution
INSERT INTO institutions (id, name, city)
VALUES ($1, $2, $3)
RETURNING id, created_at, name, city
`

func (r *InstitutionRepo) Create(ctx context.Context, name string, city string) (models.Institution, error) {
	rows, _ := r.DB.Query(ctx, createInstitution, uuid.New(), name, city)
	inst, err := pgx.CollectOneRow(rows, rowToInstitution)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return inst, apperrors.ErrInstitutionExists
		}
		return inst, fmt.Errorf("db error: %w", err)
	}

	return inst, nil
}

const getInstitution = `-- name: GetInstitution
SELECT id, created_at, name, city FROM institutions
WHERE id = $1
`

func (r *InstitutionRepo) Get(ctx context.Context, id uuid.UUID) (models.Institution, error) {
	rows, _ := r.DB.Query(ctx, getInstitution, id)
	inst, err := pgx.CollectOneRow(rows, rowToInstitution)

	switch {
	case err == nil:
		return inst, nil
	case errors.Is(err, pgx.ErrNoRows):
		return inst, apperrors.ErrInstitutionNotFound
	default:
		return inst, fmt.Errorf("db error: %w", err)
	}
}

const listInstitutions = `-- name: ListInstitutions
SELECT id, created_at, name, city FROM institutions
ORDER BY name
`

func (r *InstitutionRepo) List(ctx context.Context) ([]models.Institution, error) {
	rows, _ := r.DB.Query(ctx, listInstitutions)
	insts, err := pgx.CollectRows(rows, rowToInstitution)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return insts, nil
}

func rowToInstitution(row pgx.CollectableRow) (models.Institution, error) {
	var i models.Institution
	err := row.Scan(&i.ID, &i.CreatedAt, &i.Name, &i.City)
	return i, err
}
