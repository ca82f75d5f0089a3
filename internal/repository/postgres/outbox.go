package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mkalinin/classhub/internal/models"
)

type OutboxRepo struct {
	DB DBTX
}

const saveFailure = `-- name: SaveFailure
INSERT INTO outbox_failures (id, recipient, subject, body, reason, attempts)
VALUES ($1, $2, $3, $4, $5, $6)
`

func (r *OutboxRepo) SaveFailure(ctx context.Context, failure models.OutboxFailure) error {
	if failure.ID == uuid.Nil {
		failure.ID = uuid.New()
	}

	_, err := r.DB.Exec(ctx, saveFailure, failure.ID, failure.Recipient, failure.Subject, failure.Body, failure.Reason, failure.Attempts)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const listFailures = `-- name: ListFailures
SELECT id, created_at, recipient, subject, body, reason, attempts FROM outbox_failures
ORDER BY created_at
`

func (r *OutboxRepo) ListFailures(ctx context.Context) ([]models.OutboxFailure, error) {
	rows, _ := r.DB.Query(ctx, listFailures)
	failures, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.OutboxFailure, error) {
		var f models.OutboxFailure
		err := row.Scan(&f.ID, &f.CreatedAt, &f.Recipient, &f.Subject, &f.Body, &f.Reason, &f.Attempts)
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return failures, nil
}
