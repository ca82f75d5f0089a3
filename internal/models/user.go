package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

var roleRank = map[Role]int{
	RoleStudent: 1,
	RoleTeacher: 2,
	RoleAdmin:   3,
}

// AtLeast is a thin role comparison, not a policy engine
// Unknown roles rank below every known one
func (r Role) AtLeast(other Role) bool {
	return roleRank[r] >= roleRank[other]
}

type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Email          string
	FullName       string
	HashedPassword string
	Role           Role

	// Account activation bit: false until the activation link is used
	Enabled bool

	// TFASecret is nil until two-factor auth is enabled
	TFASecret  *string
	TFAEnabled bool

	InstitutionID *uuid.UUID
}
