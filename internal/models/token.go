package models

import (
	"time"

	"github.com/google/uuid"
)

// TokenMode is the purpose tag of an issued token
// It decides the token lifetime and what action the token authorizes
type TokenMode string

const (
	TokenModeAccess       TokenMode = "ACCESS"
	TokenModeRefresh      TokenMode = "REFRESH"
	TokenModeActivation   TokenMode = "ACCOUNT_ACTIVATION"
	TokenModeResetPwd     TokenMode = "RESET_PASSWORD"
	TokenModeReset2FA     TokenMode = "RESET_2FA"
	TokenModeConfirmEmail TokenMode = "EMAIL_CONFIRMATION"
	TokenModeCourseJoin   TokenMode = "COURSE_JOIN_CONFIRMATION"
)

// SessionModes are revoked and reissued together on every login
var SessionModes = []TokenMode{TokenModeAccess, TokenModeRefresh}

// SingleUse reports whether tokens of this mode follow the
// issue, use once, revoke lifecycle (emailed links and confirmations)
func (m TokenMode) SingleUse() bool {
	switch m {
	case TokenModeActivation, TokenModeResetPwd, TokenModeReset2FA, TokenModeConfirmEmail, TokenModeCourseJoin:
		return true
	}
	return false
}

// TokenTypeBearer is the only scheme issued for now
// Stored per token so the scheme can change without a migration
const TokenTypeBearer = "bearer"

// TokenRecord is the persisted state of one issued token
// The token string itself is opaque here: only the signer ever decodes it
type TokenRecord struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	Mode      TokenMode
	Type      string
	Revoked   bool
	Expired   bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenPair issued to the user on successful authentication
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
