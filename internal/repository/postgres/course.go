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

type CourseRepo struct {
	DB DBTX
}

const createCourse = `-- name: CreateCourse
INSERT INTO courses (id, institution_id, owner_id, name, description)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at, institution_id, owner_id, name, description
`

func (r *CourseRepo) Create(ctx context.Context, arg repository.CreateCourseParams) (models.Course, error) {
	rows, _ := r.DB.Query(ctx, createCourse, uuid.New(), arg.InstitutionID, arg.OwnerID, arg.Name, arg.Description)
	course, err := pgx.CollectOneRow(rows, rowToCourse)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return course, apperrors.ErrCourseExists
		}
		return course, fmt.Errorf("db error: %w", err)
	}
	return course, nil
}

const getCourse = `-- name: GetCourse
SELECT id, created_at, institution_id, owner_id, name, description FROM courses
WHERE id = $1
`

func (r *CourseRepo) Get(ctx context.Context, id uuid.UUID) (models.Course, error) {
	rows, _ := r.DB.Query(ctx, getCourse, id)
	course, err := pgx.CollectOneRow(rows, rowToCourse)

	switch {
	case err == nil:
		return course, nil
	case errors.Is(err, pgx.ErrNoRows):
		return course, apperrors.ErrCourseNotFound
	default:
		return course, fmt.Errorf("db error: %w", err)
	}
}

const listCourses = `-- name: ListCourses
SELECT id, created_at, institution_id, owner_id, name, description FROM courses
WHERE institution_id = $1
ORDER BY name
`

func (r *CourseRepo) ListByInstitution(ctx context.Context, institutionID uuid.UUID) ([]models.Course, error) {
	rows, _ := r.DB.Query(ctx, listCourses, institutionID)
	courses, err := pgx.CollectRows(rows, rowToCourse)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return courses, nil
}

const addCourseMember = `-- name: AddCourseMember
INSERT INTO course_members (course_id, user_id)
VALUES ($1, $2)
`

func (r *CourseRepo) AddMember(ctx context.Context, courseID uuid.UUID, userID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, addCourseMember, courseID, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return apperrors.ErrAlreadyMember
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const createTask = `-- name: CreateTask
INSERT INTO tasks (id, course_id, name, body, max_score, deadline)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at, course_id, name, body, max_score, deadline
`

func (r *CourseRepo) CreateTask(ctx context.Context, task models.Task) (models.Task, error) {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createTask, task.ID, task.CourseID, task.Name, task.Body, task.MaxScore, task.Deadline)
	saved, err := pgx.CollectOneRow(rows, rowToTask)
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}
	return saved, nil
}

const listTasks = `-- name: ListTasks
SELECT id, created_at, course_id, name, body, max_score, deadline FROM tasks
WHERE course_id = $1
ORDER BY created_at
`

func (r *CourseRepo) ListTasks(ctx context.Context, courseID uuid.UUID) ([]models.Task, error) {
	rows, _ := r.DB.Query(ctx, listTasks, courseID)
	tasks, err := pgx.CollectRows(rows, rowToTask)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return tasks, nil
}

func rowToCourse(row pgx.CollectableRow) (models.Course, error) {
	var c models.Course
	err := row.Scan(&c.ID, &c.CreatedAt, &c.InstitutionID, &c.OwnerID, &c.Name, &c.Description)
	return c, err
}

func rowToTask(row pgx.CollectableRow) (models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.CreatedAt, &t.CourseID, &t.Name, &t.Body, &t.MaxScore, &t.Deadline)
	return t, err
}
