package auth

import (
	"context"
	"fmt"

	"github.com/mkalinin/classhub/internal/apperrors"
	"github.com/mkalinin/classhub/internal/models"
	"github.com/mkalinin/classhub/internal/repository"
)

// Enable2FAResult carries the fresh session pair plus the provisioning
// payload the user scans into an authenticator app
type Enable2FAResult struct {
	Pair models.TokenPair

	// Secret in base32, shown as a fallback for manual entry
	Secret string

	// SecretImageURI is the provisioning QR code as a data URI
	SecretImageURI string
}

// Enable2FA re-verifies credentials, stores a fresh secret and rotates the
// session pair in the same breath: a session established before two-factor
// auth existed must not survive enabling it
func (s *AuthService) Enable2FA(ctx context.Context, email string, password string) (Enable2FAResult, error) {
	user, err := s.verifyCredentials(ctx, email, password)
	if err != nil {
		return Enable2FAResult{}, err
	}

	if user.TFAEnabled {
		return Enable2FAResult{}, apperrors.Err2FAAlreadyEnabled
	}

	secret, err := s.tfa.GenerateSecret()
	if err != nil {
		return Enable2FAResult{}, err
	}

	var pair models.TokenPair
	err = s.storage.InTx(ctx, func(tx repository.Storage) error {
		if err := tx.User().SetTFA(ctx, user.ID, &secret, true); err != nil {
			return err
		}

		mgr := s.tokens.WithStore(tx.Token())
		if _, err := mgr.RevokeAll(ctx, user.ID, models.SessionModes...); err != nil {
			return err
		}

		pair, err = mgr.IssuePair(ctx, user)
		return err
	})
	if err != nil {
		return Enable2FAResult{}, fmt.Errorf("error while enabling two-factor auth. Err: %w", err)
	}

	imageURI, err := s.tfa.QRCodeDataURI(secret, user.Email)
	if err != nil {
		return Enable2FAResult{}, err
	}

	s.logger.Info("Two-factor auth enabled", "user_id", user.ID)

	return Enable2FAResult{
		Pair:           pair,
		Secret:         secret,
		SecretImageURI: imageURI,
	}, nil
}

// Disable2FA requires both valid credentials and a valid current code:
// lowering account security is gated twice on purpose
func (s *AuthService) Disable2FA(ctx context.Context, email string, password string, code string) (models.TokenPair, error) {
	user, err := s.verifyCredentials(ctx, email, password)
	if err != nil {
		return models.TokenPair{}, err
	}

	if !user.TFAEnabled || user.TFASecret == nil {
		return models.TokenPair{}, apperrors.Err2FANotEnabled
	}

	ok, err := s.tfa.VerifyCode(*user.TFASecret, code)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("error while verifying one-time code. Err: %w", err)
	}
	if !ok {
		return models.TokenPair{}, apperrors.ErrBadOTPCode
	}

	var pair models.TokenPair
	err = s.storage.InTx(ctx, func(tx repository.Storage) error {
		if err := tx.User().SetTFA(ctx, user.ID, nil, false); err != nil {
			return err
		}

		mgr := s.tokens.WithStore(tx.Token())
		if _, err := mgr.RevokeAll(ctx, user.ID, models.SessionModes...); err != nil {
			return err
		}

		pair, err = mgr.IssuePair(ctx, user)
		return err
	})
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("error while disabling two-factor auth. Err: %w", err)
	}

	s.logger.Info("Two-factor auth disabled", "user_id", user.ID)

	return pair, nil
}
