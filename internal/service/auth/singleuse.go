package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mkalinin/classhub/internal/apperrors"
	"github.com/mkalinin/classhub/internal/models"
	"github.com/mkalinin/classhub/internal/notification"
	"github.com/mkalinin/classhub/internal/repository"
)

// Outcome of a single-use token flow
// Renewed means the link was expired: instead of a hard error the stale
// token was revoked, a fresh one was minted and mailed, and the caller
// should tell the user to check their email again
type Outcome struct {
	Renewed       bool
	NewLinkExpiry time.Time
}

type RegisterParams struct {
	Email         string
	FullName      string
	Password      string
	Role          models.Role
	InstitutionID *uuid.UUID
}

// Register creates a disabled account and mails an activation link
// The account stays unusable until the link is followed
func (s *AuthService) Register(ctx context.Context, arg RegisterParams) (models.User, error) {
	hash, err := s.hasher.Hash(arg.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	if arg.Role == "" {
		arg.Role = models.RoleStudent
	}

	var user models.User
	var activation models.IssuedToken

	err = s.storage.InTx(ctx, func(tx repository.Storage) error {
		user, err = tx.User().CreateUser(ctx, repository.CreateUserParams{
			Email:          arg.Email,
			FullName:       arg.FullName,
			HashedPassword: hash,
			Role:           arg.Role,
			InstitutionID:  arg.InstitutionID,
		})
		if err != nil {
			return err
		}

		activation, err = s.tokens.WithStore(tx.Token()).IssueAndPersist(ctx, user, models.TokenModeActivation)
		return err
	})
	if err != nil {
		return models.User{}, err
	}

	s.notifier.Enqueue(notification.ActivationMessage(s.baseURL, user.Email, activation.Value))
	s.logger.Info("User registered", "user_id", user.ID)

	return user, nil
}

// Activate flips the account activation bit behind an emailed token
// An expired link heals itself: a fresh one is mailed instead of an error
func (s *AuthService) Activate(ctx context.Context, email string, tokenString string) (Outcome, error) {
	user, outcome, err := s.consumeSingleUse(ctx, email, tokenString, models.TokenModeActivation, func(fresh string) notification.Message {
		return notification.ActivationMessage(s.baseURL, email, fresh)
	})
	if err != nil || outcome.Renewed {
		return outcome, err
	}

	err = s.storage.InTx(ctx, func(tx repository.Storage) error {
		if err := tx.User().SetEnabled(ctx, user.ID, true); err != nil {
			return err
		}

		_, err := s.tokens.WithStore(tx.Token()).RevokeAll(ctx, user.ID, models.TokenModeActivation)
		return err
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("error while activating account. Err: %w", err)
	}

	s.notifier.Enqueue(notification.AccountActivatedMessage(user.Email))
	s.logger.Info("Account activated", "user_id", user.ID)

	return Outcome{}, nil
}

// RequestPasswordReset mints a reset link, superseding any previous one
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.storage.User().GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	issued, err := s.reissueSingleUse(ctx, user, models.TokenModeResetPwd)
	if err != nil {
		return err
	}

	s.notifier.Enqueue(notification.PasswordResetMessage(s.baseURL, user.Email, issued.Value))
	s.logger.Info("Password reset requested", "user_id", user.ID)

	return nil
}

// ResetPassword sets a new password behind an emailed token
// On success every session token is revoked too: the user has to log in again
func (s *AuthService) ResetPassword(ctx context.Context, email string, tokenString string, newPassword string) (Outcome, error) {
	user, outcome, err := s.consumeSingleUse(ctx, email, tokenString, models.TokenModeResetPwd, func(fresh string) notification.Message {
		return notification.PasswordResetMessage(s.baseURL, email, fresh)
	})
	if err != nil || outcome.Renewed {
		return outcome, err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return Outcome{}, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	err = s.storage.InTx(ctx, func(tx repository.Storage) error {
		if err := tx.User().UpdatePassword(ctx, user.ID, hash); err != nil {
			return err
		}

		modes := append([]models.TokenMode{models.TokenModeResetPwd}, models.SessionModes...)
		_, err := s.tokens.WithStore(tx.Token()).RevokeAll(ctx, user.ID, modes...)
		return err
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("error while resetting password. Err: %w", err)
	}

	s.notifier.Enqueue(notification.PasswordChangedMessage(user.Email))
	s.logger.Info("Password reset", "user_id", user.ID)

	return Outcome{}, nil
}

// RequestTwoFactorReset mints a 2FA reset link for accounts that lost
// their authenticator
func (s *AuthService) RequestTwoFactorReset(ctx context.Context, email string) error {
	user, err := s.storage.User().GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	if !user.TFAEnabled {
		return apperrors.Err2FANotEnabled
	}

	issued, err := s.reissueSingleUse(ctx, user, models.TokenModeReset2FA)
	if err != nil {
		return err
	}

	s.notifier.Enqueue(notification.TwoFactorResetMessage(s.baseURL, user.Email, issued.Value))
	s.logger.Info("Two-factor reset requested", "user_id", user.ID)

	return nil
}

// ConfirmTwoFactorReset clears the stored secret behind an emailed token
func (s *AuthService) ConfirmTwoFactorReset(ctx context.Context, email string, tokenString string) (Outcome, error) {
	user, outcome, err := s.consumeSingleUse(ctx, email, tokenString, models.TokenModeReset2FA, func(fresh string) notification.Message {
		return notification.TwoFactorResetMessage(s.baseURL, email, fresh)
	})
	if err != nil || outcome.Renewed {
		return outcome, err
	}

	err = s.storage.InTx(ctx, func(tx repository.Storage) error {
		if err := tx.User().SetTFA(ctx, user.ID, nil, false); err != nil {
			return err
		}

		_, err := s.tokens.WithStore(tx.Token()).RevokeAll(ctx, user.ID, models.TokenModeReset2FA)
		return err
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("error while resetting two-factor auth. Err: %w", err)
	}

	s.notifier.Enqueue(notification.TwoFactorResetDoneMessage(user.Email))
	s.logger.Info("Two-factor auth reset", "user_id", user.ID)

	return Outcome{}, nil
}

// consumeSingleUse runs the shared front half of every single-use token flow:
//  1. resolve the user by email and by the token's owner, fail on mismatch
//     (a reset link can never be replayed against another account)
//  2. validate the token for the expected mode
//  3. on expiration, and only on expiration, self-heal: revoke the stale
//     token set, mint and mail a fresh one, report a soft renewed outcome
func (s *AuthService) consumeSingleUse(
	ctx context.Context,
	email string,
	tokenString string,
	mode models.TokenMode,
	renewMessage func(freshToken string) notification.Message,
) (models.User, Outcome, error) {
	if !mode.SingleUse() {
		return models.User{}, Outcome{}, fmt.Errorf("%s is not a single-use token mode", mode)
	}

	user, err := s.storage.User().GetUserByEmail(ctx, email)
	if err != nil {
		return user, Outcome{}, err
	}

	owner, err := s.tokens.ResolveOwner(ctx, tokenString)
	if err != nil {
		return user, Outcome{}, err
	}

	if owner.ID != user.ID {
		return user, Outcome{}, apperrors.ErrTokenOwnerMismatch
	}

	err = s.tokens.Validate(ctx, tokenString, mode)
	switch {
	case err == nil:
		return user, Outcome{}, nil

	case errors.Is(err, apperrors.ErrTokenExpired):
		issued, err := s.reissueSingleUse(ctx, user, mode)
		if err != nil {
			return user, Outcome{}, err
		}

		s.notifier.Enqueue(renewMessage(issued.Value))
		s.logger.Info("Expired single-use token renewed", "user_id", user.ID, "mode", mode)

		return user, Outcome{Renewed: true, NewLinkExpiry: issued.ExpiresAt}, nil

	default:
		return user, Outcome{}, err
	}
}

// reissueSingleUse revokes every live token of the mode and persists a fresh
// one in a single transaction, keeping at most one live token per (user, mode)
func (s *AuthService) reissueSingleUse(ctx context.Context, user models.User, mode models.TokenMode) (models.IssuedToken, error) {
	var issued models.IssuedToken

	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		mgr := s.tokens.WithStore(tx.Token())

		if _, err := mgr.RevokeAll(ctx, user.ID, mode); err != nil {
			return err
		}

		var err error
		issued, err = mgr.IssueAndPersist(ctx, user, mode)
		return err
	})
	if err != nil {
		return issued, fmt.Errorf("error while reissuing %s token. Err: %w", mode, err)
	}

	return issued, nil
}
