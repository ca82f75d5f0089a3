package models

import (
	"time"

	"github.com/google/uuid"
)

type Institution struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Name      string
	City      string
}

type StudyGroup struct {
	ID            uuid.UUID
	CreatedAt     time.Time
	InstitutionID uuid.UUID
	Name          string
}

type GroupMember struct {
	GroupID  uuid.UUID
	UserID   uuid.UUID
	JoinedAt time.Time
}
