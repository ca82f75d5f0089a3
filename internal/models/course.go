package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Course struct {
	ID            uuid.UUID
	CreatedAt     time.Time
	InstitutionID uuid.UUID
	OwnerID       uuid.UUID
	Name          string
	Description   string
}

type Task struct {
	ID        uuid.UUID
	CreatedAt time.Time
	CourseID  uuid.UUID
	Name      string
	Body      string
	MaxScore  decimal.Decimal
	Deadline  *time.Time
}

type CourseMember struct {
	CourseID uuid.UUID
	UserID   uuid.UUID
	JoinedAt time.Time
}
