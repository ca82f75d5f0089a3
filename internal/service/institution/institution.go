package institution

import (
	"context"

	"github.com/google/uuid"

	"github.com/mkalinin/classhub/internal/apperrors"
	"github.com/mkalinin/classhub/internal/models"
	"github.com/mkalinin/classhub/internal/repository"
)

// Service owns institution and study group CRUD
type Service struct {
	storage repository.Storage
}

func NewService(storage repository.Storage) *Service {
	return &Service{storage: storage}
}

func (s *Service) Create(ctx context.Context, actor models.User, name string, city string) (models.Institution, error) {
	if !actor.Role.AtLeast(models.RoleAdmin) {
		return models.Institution{}, apperrors.ErrForbidden
	}

	return s.storage.Institution().Create(ctx, name, city)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (models.Institution, error) {
	return s.storage.Institution().Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]models.Institution, error) {
	return s.storage.Institution().List(ctx)
}

func (s *Service) CreateGroup(ctx context.Context, actor models.User, institutionID uuid.UUID, name string) (models.StudyGroup, error) {
	if !actor.Role.AtLeast(models.RoleTeacher) {
		return models.StudyGroup{}, apperrors.ErrForbidden
	}

	// Ensure the institution exists so a typo does not create an orphan group
	if _, err := s.storage.Institution().Get(ctx, institutionID); err != nil {
		return models.StudyGroup{}, err
	}

	return s.storage.Group().Create(ctx, institutionID, name)
}

func (s *Service) ListGroups(ctx context.Context, institutionID uuid.UUID) ([]models.StudyGroup, error) {
	return s.storage.Group().ListByInstitution(ctx, institutionID)
}

func (s *Service) AddGroupMember(ctx context.Context, actor models.User, groupID uuid.UUID, userID uuid.UUID) error {
	if !actor.Role.AtLeast(models.RoleTeacher) {
		return apperrors.ErrForbidden
	}

	if _, err := s.storage.Group().Get(ctx, groupID); err != nil {
		return err
	}

	return s.storage.Group().AddMember(ctx, groupID, userID)
}

func (s *Service) RemoveGroupMember(ctx context.Context, actor models.User, groupID uuid.UUID, userID uuid.UUID) error {
	if !actor.Role.AtLeast(models.RoleTeacher) {
		return apperrors.ErrForbidden
	}

	return s.storage.Group().RemoveMember(ctx, groupID, userID)
}
