package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/mkalinin/classhub/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user
	// If user with email exists already has to return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, arg CreateUserParams) (models.User, error)

	// Get user by id or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	UpdatePassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error

	// SetTFA stores secret (nil clears it) and the enabled flag together
	SetTFA(ctx context.Context, userID uuid.UUID, secret *string, enabled bool) error

	// SetEnabled flips the account activation bit
	SetEnabled(ctx context.Context, userID uuid.UUID, enabled bool) error
}

type CreateUserParams struct {
	Email          string
	FullName       string
	HashedPassword string
	Role           models.Role
	InstitutionID  *uuid.UUID
}

// Token repository interface: the single source of truth for revocation
type TokenRepo interface {
	// Save one issued token; the token string must be unique
	Save(ctx context.Context, token models.TokenRecord) (models.TokenRecord, error)

	// Get token record by the opaque token string
	// Must return apperrors.ErrTokenNotFound if no record exists
	Get(ctx context.Context, tokenString string) (models.TokenRecord, error)

	// GetOwner resolves the user the token was issued to
	// Must return apperrors.ErrTokenNotFound if no record exists
	GetOwner(ctx context.Context, tokenString string) (models.User, error)

	// RevokeAll revokes every live token of the user in the given modes
	// Idempotent: revoking nothing is not an error, returns affected count
	RevokeAll(ctx context.Context, userID uuid.UUID, modes []models.TokenMode) (int64, error)

	// MarkExpired records time-based expiry observed by the validating path
	// Never flips the flag back to false
	MarkExpired(ctx context.Context, tokenString string) error
}

type InstitutionRepo interface {
	Create(ctx context.Context, name string, city string) (models.Institution, error)
	Get(ctx context.Context, id uuid.UUID) (models.Institution, error)
	List(ctx context.Context) ([]models.Institution, error)
}

type GroupRepo interface {
	Create(ctx context.Context, institutionID uuid.UUID, name string) (models.StudyGroup, error)
	Get(ctx context.Context, id uuid.UUID) (models.StudyGroup, error)
	ListByInstitution(ctx context.Context, institutionID uuid.UUID) ([]models.StudyGroup, error)
	AddMember(ctx context.Context, groupID uuid.UUID, userID uuid.UUID) error
	RemoveMember(ctx context.Context, groupID uuid.UUID, userID uuid.UUID) error
}

type CourseRepo interface {
	Create(ctx context.Context, arg CreateCourseParams) (models.Course, error)
	Get(ctx context.Context, id uuid.UUID) (models.Course, error)
	ListByInstitution(ctx context.Context, institutionID uuid.UUID) ([]models.Course, error)
	AddMember(ctx context.Context, courseID uuid.UUID, userID uuid.UUID) error

	CreateTask(ctx context.Context, task models.Task) (models.Task, error)
	ListTasks(ctx context.Context, courseID uuid.UUID) ([]models.Task, error)
}

type CreateCourseParams struct {
	InstitutionID uuid.UUID
	OwnerID       uuid.UUID
	Name          string
	Description   string
}

type OutboxRepo interface {
	// SaveFailure durably records a notification that exhausted retries
	SaveFailure(ctx context.Context, failure models.OutboxFailure) error
	ListFailures(ctx context.Context) ([]models.OutboxFailure, error)
}

// Storage aggregates repositories and transactional composition
type Storage interface {
	User() UserRepo
	Token() TokenRepo
	Institution() InstitutionRepo
	Group() GroupRepo
	Course() CourseRepo
	Outbox() OutboxRepo

	// InTx runs fn against a storage bound to one db transaction
	// Commits if fn returns nil, rolls back otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
