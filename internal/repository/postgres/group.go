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

type GroupRepo struct {
	DB DBTX
}

const createGroup = `-- name: CreateGroup
INSERT INTO study_groups (id, institution_id, name)
VALUES ($1, $2, $3)
RETURNING id, created_at, institution_id, name
`

func (r *GroupRepo) Create(ctx context.Context, institutionID uuid.UUID, name string) (models.StudyGroup, error) {
	rows, _ := r.DB.Query(ctx, createGroup, uuid.New(), institutionID, name)
	group, err := pgx.CollectOneRow(rows, rowToGroup)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return group, apperrors.ErrGroupExists
		}
		return group, fmt.Errorf("db error: %w", err)
	}
	return group, nil
}

const getGroup = `-- name: GetGroup
SELECT id, created_at, institution_id, name FROM study_groups
WHERE id = $1
`

func (r *GroupRepo) Get(ctx context.Context, id uuid.UUID) (models.StudyGroup, error) {
	rows, _ := r.DB.Query(ctx, getGroup, id)
	group, err := pgx.CollectOneRow(rows, rowToGroup)

	switch {
	case err == nil:
		return group, nil
	case errors.Is(err, pgx.ErrNoRows):
		return group, apperrors.ErrGroupNotFound
	default:
		return group, fmt.Errorf("db error: %w", err)
	}
}

const listGroups = `-- name: ListGroups
SELECT id, created_at, institution_id, name FROM study_groups
WHERE institution_id = $1
ORDER BY name
`

func (r *GroupRepo) ListByInstitution(ctx context.Context, institutionID uuid.UUID) ([]models.StudyGroup, error) {
	rows, _ := r.DB.Query(ctx, listGroups, institutionID)
	groups, err := pgx.CollectRows(rows, rowToGroup)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return groups, nil
}

const addGroupMember = `-- name: AddGroupMember
INSERT INTO group_members (group_id, user_id)
VALUES ($1, $2)
`

func (r *GroupRepo) AddMember(ctx context.Context, groupID uuid.UUID, userID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, addGroupMember, groupID, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return apperrors.ErrAlreadyMember
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const removeGroupMember = `-- name: RemoveGroupMember
DELETE FROM group_members
WHERE group_id = $1 AND user_id = $2
`

func (r *GroupRepo) RemoveMember(ctx context.Context, groupID uuid.UUID, userID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, removeGroupMember, groupID, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func rowToGroup(row pgx.CollectableRow) (models.StudyGroup, error) {
	var g models.StudyGroup
	err := row.Scan(&g.ID, &g.CreatedAt, &g.InstitutionID, &g.Name)
	return g, err
}
