package models

import (
	"time"

	"github.com/google/uuid"
)

// OutboxFailure is a notification that exhausted delivery retries
// Kept durably for operator follow-up, never surfaced to the caller
type OutboxFailure struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Recipient string
	Subject   string
	Body      string
	Reason    string
	Attempts  int
}
