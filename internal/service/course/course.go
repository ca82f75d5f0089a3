package course

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkalinin/classhub/internal/apperrors"
	"github.com/mkalinin/classhub/internal/logger"
	"github.com/mkalinin/classhub/internal/models"
	"github.com/mkalinin/classhub/internal/notification"
	"github.com/mkalinin/classhub/internal/repository"
	"github.com/mkalinin/classhub/internal/service/token"
)

type notifier interface {
	Enqueue(msg notification.Message)
}

// Service owns course and task CRUD plus the email-confirmed join flow
type Service struct {
	storage  repository.Storage
	tokens   *token.Manager
	notifier notifier
	logger   logger.Logger
	baseURL  string
}

func NewService(storage repository.Storage, tokens *token.Manager, n notifier, l logger.Logger, baseURL string) *Service {
	if l == nil {
		l = logger.NewNoOp()
	}

	return &Service{
		storage:  storage,
		tokens:   tokens,
		notifier: n,
		logger:   l,
		baseURL:  baseURL,
	}
}

func (s *Service) CreateCourse(ctx context.Context, actor models.User, institutionID uuid.UUID, name string, description string) (models.Course, error) {
	if !actor.Role.AtLeast(models.RoleTeacher) {
		return models.Course{}, apperrors.ErrForbidden
	}

	return s.storage.Course().Create(ctx, repository.CreateCourseParams{
		InstitutionID: institutionID,
		OwnerID:       actor.ID,
		Name:          name,
		Description:   description,
	})
}

func (s *Service) GetCourse(ctx context.Context, id uuid.UUID) (models.Course, error) {
	return s.storage.Course().Get(ctx, id)
}

func (s *Service) ListCourses(ctx context.Context, institutionID uuid.UUID) ([]models.Course, error) {
	return s.storage.Course().ListByInstitution(ctx, institutionID)
}

type CreateTaskParams struct {
	CourseID uuid.UUID
	Name     string
	Body     string
	MaxScore decimal.Decimal
	Deadline *time.Time
}

// CreateTask is allowed for the course owner and for admins only
func (s *Service) CreateTask(ctx context.Context, actor models.User, arg CreateTaskParams) (models.Task, error) {
	course, err := s.storage.Course().Get(ctx, arg.CourseID)
	if err != nil {
		return models.Task{}, err
	}

	if course.OwnerID != actor.ID && !actor.Role.AtLeast(models.RoleAdmin) {
		return models.Task{}, apperrors.ErrForbidden
	}

	return s.storage.Course().CreateTask(ctx, models.Task{
		CourseID: arg.CourseID,
		Name:     arg.Name,
		Body:     arg.Body,
		MaxScore: arg.MaxScore,
		Deadline: arg.Deadline,
	})
}

func (s *Service) ListTasks(ctx context.Context, courseID uuid.UUID) ([]models.Task, error) {
	return s.storage.Course().ListTasks(ctx, courseID)
}

// RequestJoin mails a confirmation link to the student
// Joining happens only after the link is followed
func (s *Service) RequestJoin(ctx context.Context, user models.User, courseID uuid.UUID) error {
	course, err := s.storage.Course().Get(ctx, courseID)
	if err != nil {
		return err
	}

	var issued models.IssuedToken
	err = s.storage.InTx(ctx, func(tx repository.Storage) error {
		mgr := s.tokens.WithStore(tx.Token())

		if _, err := mgr.RevokeAll(ctx, user.ID, models.TokenModeCourseJoin); err != nil {
			return err
		}

		issued, err = mgr.IssueAndPersist(ctx, user, models.TokenModeCourseJoin)
		return err
	})
	if err != nil {
		return fmt.Errorf("error while issuing course join token. Err: %w", err)
	}

	s.notifier.Enqueue(notification.CourseJoinMessage(s.baseURL, user.Email, course.Name, issued.Value))
	s.logger.Info("Course join requested", "user_id", user.ID, "course_id", courseID)

	return nil
}

// JoinOutcome mirrors the single-use token outcome of the auth flows:
// an expired link is renewed and re-sent instead of failing hard
type JoinOutcome struct {
	Renewed       bool
	NewLinkExpiry time.Time
}

// ConfirmJoin adds the user to the course behind the emailed token
func (s *Service) ConfirmJoin(ctx context.Context, email string, courseID uuid.UUID, tokenString string) (JoinOutcome, error) {
	user, err := s.storage.User().GetUserByEmail(ctx, email)
	if err != nil {
		return JoinOutcome{}, err
	}

	owner, err := s.tokens.ResolveOwner(ctx, tokenString)
	if err != nil {
		return JoinOutcome{}, err
	}
	if owner.ID != user.ID {
		return JoinOutcome{}, apperrors.ErrTokenOwnerMismatch
	}

	course, err := s.storage.Course().Get(ctx, courseID)
	if err != nil {
		return JoinOutcome{}, err
	}

	err = s.tokens.Validate(ctx, tokenString, models.TokenModeCourseJoin)
	switch {
	case err == nil:
		// fall through to the join itself

	case errors.Is(err, apperrors.ErrTokenExpired):
		var issued models.IssuedToken
		err = s.storage.InTx(ctx, func(tx repository.Storage) error {
			mgr := s.tokens.WithStore(tx.Token())

			if _, err := mgr.RevokeAll(ctx, user.ID, models.TokenModeCourseJoin); err != nil {
				return err
			}

			issued, err = mgr.IssueAndPersist(ctx, user, models.TokenModeCourseJoin)
			return err
		})
		if err != nil {
			return JoinOutcome{}, fmt.Errorf("error while renewing course join token. Err: %w", err)
		}

		s.notifier.Enqueue(notification.CourseJoinMessage(s.baseURL, user.Email, course.Name, issued.Value))
		s.logger.Info("Expired course join token renewed", "user_id", user.ID, "course_id", courseID)

		return JoinOutcome{Renewed: true, NewLinkExpiry: issued.ExpiresAt}, nil

	default:
		return JoinOutcome{}, err
	}

	err = s.storage.InTx(ctx, func(tx repository.Storage) error {
		if err := tx.Course().AddMember(ctx, courseID, user.ID); err != nil {
			return err
		}

		_, err := s.tokens.WithStore(tx.Token()).RevokeAll(ctx, user.ID, models.TokenModeCourseJoin)
		return err
	})
	if err != nil {
		return JoinOutcome{}, err
	}

	s.logger.Info("Course join confirmed", "user_id", user.ID, "course_id", courseID)

	return JoinOutcome{}, nil
}
