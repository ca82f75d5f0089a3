package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mkalinin/classhub/internal/apperrors"
	"github.com/mkalinin/classhub/internal/models"
	"github.com/mkalinin/classhub/internal/repository"
)

// Manager orchestrates the token lifecycle: it combines the signer output
// with persisted token state. A signed token is usable only when both agree:
// a forged-but-unexpired token with no db row is rejected, and a correctly
// signed token whose row was revoked is rejected too.
type Manager struct {
	signer *Signer
	tokens repository.TokenRepo
}

func NewManager(signer *Signer, tokens repository.TokenRepo) (*Manager, error) {
	if signer == nil {
		return nil, errors.New("signer must not be nil")
	}
	if tokens == nil {
		return nil, errors.New("token repo must not be nil")
	}

	return &Manager{signer: signer, tokens: tokens}, nil
}

// WithStore returns a manager bound to another token repo
// Used to run revoke-then-issue sequences inside one db transaction
func (m *Manager) WithStore(tokens repository.TokenRepo) *Manager {
	return &Manager{signer: m.signer, tokens: tokens}
}

// IssueAndPersist signs a fresh token for the user and saves its record
// No revocation side effect: callers decide when to revoke the old set
func (m *Manager) IssueAndPersist(ctx context.Context, user models.User, mode models.TokenMode) (models.IssuedToken, error) {
	issued, err := m.signer.Issue(user.Email, []string{string(user.Role)}, mode)
	if err != nil {
		return issued, err
	}

	_, err = m.tokens.Save(ctx, models.TokenRecord{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     issued.Value,
		Mode:      mode,
		Type:      models.TokenTypeBearer,
		CreatedAt: time.Now().Truncate(time.Second),
		ExpiresAt: issued.ExpiresAt,
	})
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while saving token. Err: %w", err)
	}

	return issued, nil
}

// IssuePair issues and persists a fresh ACCESS+REFRESH pair
func (m *Manager) IssuePair(ctx context.Context, user models.User) (models.TokenPair, error) {
	access, err := m.IssueAndPersist(ctx, user, models.TokenModeAccess)
	if err != nil {
		return models.TokenPair{}, err
	}

	refresh, err := m.IssueAndPersist(ctx, user, models.TokenModeRefresh)
	if err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// RevokeAll revokes every live token of the user in the given modes, idempotently
func (m *Manager) RevokeAll(ctx context.Context, userID uuid.UUID, modes ...models.TokenMode) (int64, error) {
	return m.tokens.RevokeAll(ctx, userID, modes)
}

// Validate runs the full validation protocol for expected failure kinds it
// returns sentinel errors, never panics and never wraps store outages as
// token problems. Returns nil iff the token is usable as expectedMode.
//
// Failure kinds, in the order they are checked:
//   - apperrors.ErrTokenUntrusted: signature or format is invalid
//   - apperrors.ErrTokenNotFound: no record, or the record's mode differs
//   - apperrors.ErrTokenRevoked: record was revoked; checked before expiry so a
//     replayed revoked token can never trigger the renewal path
//   - apperrors.ErrTokenExpired: claim expiration passed or record flagged
func (m *Manager) Validate(ctx context.Context, tokenString string, expectedMode models.TokenMode) error {
	claims, err := m.signer.Verify(tokenString)
	if err != nil {
		return err
	}

	record, err := m.tokens.Get(ctx, tokenString)
	if err != nil {
		return err
	}

	if record.Mode != expectedMode {
		// Mode mismatch reads the same as an unknown token on purpose
		return apperrors.ErrTokenNotFound
	}

	if record.Revoked {
		return apperrors.ErrTokenRevoked
	}

	if m.signer.Expired(claims) || record.Expired {
		// Keep the persisted flag in sync with the signed claim
		if !record.Expired {
			if err := m.tokens.MarkExpired(ctx, tokenString); err != nil {
				return fmt.Errorf("error while marking token expired. Err: %w", err)
			}
		}
		return apperrors.ErrTokenExpired
	}

	return nil
}

// ResolveOwner re-derives the user identity from a bearer token through the
// store, without trusting any client-supplied identifier
func (m *Manager) ResolveOwner(ctx context.Context, tokenString string) (models.User, error) {
	return m.tokens.GetOwner(ctx, tokenString)
}
