package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkalinin/classhub/internal/apperrors"
	"github.com/mkalinin/classhub/internal/logger"
	"github.com/mkalinin/classhub/internal/models"
	"github.com/mkalinin/classhub/internal/notification"
	"github.com/mkalinin/classhub/internal/repository"
	"github.com/mkalinin/classhub/internal/service/token"
	"github.com/mkalinin/classhub/internal/service/twofactor"
)

// notifier is the narrow fire-and-forget contract to the mail dispatcher
type notifier interface {
	Enqueue(msg notification.Message)
}

type Config struct {
	// Public URL the emailed links point at
	BaseURL string

	// Hasher to use during registration or login
	// If not set than default bcrypt hasher is used
	Hasher PasswordHasher
}

// AuthService is the top level authentication orchestration
// It talks to the token manager and the two-factor engine and never
// touches the signer or the token store directly
type AuthService struct {
	hasher   PasswordHasher
	tokens   *token.Manager
	tfa      *twofactor.Engine
	storage  repository.Storage
	notifier notifier
	logger   logger.Logger
	baseURL  string
}

func NewService(cfg Config, tokens *token.Manager, tfa *twofactor.Engine, storage repository.Storage, n notifier, l logger.Logger) (*AuthService, error) {
	if tokens == nil || tfa == nil || storage == nil || n == nil {
		return nil, errors.New("tokens, tfa, storage and notifier must not be nil")
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	if l == nil {
		l = logger.NewNoOp()
	}

	return &AuthService{
		hasher:   hasher,
		tokens:   tokens,
		tfa:      tfa,
		storage:  storage,
		notifier: n,
		logger:   l,
		baseURL:  cfg.BaseURL,
	}, nil
}

// LoginResult of one login attempt
// With TFARequired set no tokens are issued yet: the client has to submit
// a one-time code to finish
type LoginResult struct {
	Pair        models.TokenPair
	TFARequired bool
}

// verifyCredentials implements the credential verifier contract:
// ok, disabled (distinct message: go confirm your email) or invalid.
// The password is always compared before the enabled bit is looked at, so
// the disabled message never confirms a password guess
func (s *AuthService) verifyCredentials(ctx context.Context, email string, password string) (models.User, error) {
	user, err := s.storage.User().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return user, apperrors.ErrInvalidCredentials
		}
		return user, err
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return user, apperrors.ErrInvalidCredentials
	}

	if !user.Enabled {
		return user, apperrors.ErrUserDisabled
	}

	return user, nil
}

// Login verifies credentials and either issues a fresh session pair or,
// when the account has two-factor auth enabled, stops and asks for a code
// without touching any tokens
func (s *AuthService) Login(ctx context.Context, email string, password string) (LoginResult, error) {
	user, err := s.verifyCredentials(ctx, email, password)
	if err != nil {
		return LoginResult{}, err
	}

	if user.TFAEnabled {
		return LoginResult{TFARequired: true}, nil
	}

	pair, err := s.rotateSession(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}

	return LoginResult{Pair: pair}, nil
}

// VerifyOtpAndIssueTokens finishes a two-factor login
func (s *AuthService) VerifyOtpAndIssueTokens(ctx context.Context, email string, code string) (LoginResult, error) {
	user, err := s.storage.User().GetUserByEmail(ctx, email)
	if err != nil {
		return LoginResult{}, err
	}

	if !user.TFAEnabled || user.TFASecret == nil {
		return LoginResult{}, apperrors.Err2FANotEnabled
	}

	ok, err := s.tfa.VerifyCode(*user.TFASecret, code)
	if err != nil {
		return LoginResult{}, fmt.Errorf("error while verifying one-time code. Err: %w", err)
	}
	if !ok {
		return LoginResult{}, apperrors.ErrBadOTPCode
	}

	pair, err := s.rotateSession(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}

	return LoginResult{Pair: pair}, nil
}

// RefreshAccessToken exchanges a valid refresh token for a fresh access token
// The refresh token itself is not rotated here; it stays valid until the next
// full login. Product decision pending on whether it should rotate as well.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (models.IssuedToken, error) {
	if err := s.tokens.Validate(ctx, refreshToken, models.TokenModeRefresh); err != nil {
		return models.IssuedToken{}, err
	}

	user, err := s.tokens.ResolveOwner(ctx, refreshToken)
	if err != nil {
		return models.IssuedToken{}, err
	}

	var access models.IssuedToken
	err = s.storage.InTx(ctx, func(tx repository.Storage) error {
		mgr := s.tokens.WithStore(tx.Token())

		if _, err := mgr.RevokeAll(ctx, user.ID, models.TokenModeAccess); err != nil {
			return err
		}

		access, err = mgr.IssueAndPersist(ctx, user, models.TokenModeAccess)
		return err
	})
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while refreshing access token. Err: %w", err)
	}

	return access, nil
}

// Logout revokes the user's session tokens. Idempotent
func (s *AuthService) Logout(ctx context.Context, user models.User) error {
	_, err := s.tokens.RevokeAll(ctx, user.ID, models.SessionModes...)
	if err != nil {
		return fmt.Errorf("error while revoking session tokens. Err: %w", err)
	}
	return nil
}

// Authenticate resolves the user behind a bearer access token
// Used by the auth middleware on every protected request; validity is
// always re-read from the store, never cached
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (models.User, error) {
	if err := s.tokens.Validate(ctx, accessToken, models.TokenModeAccess); err != nil {
		return models.User{}, err
	}

	return s.tokens.ResolveOwner(ctx, accessToken)
}

// rotateSession revokes every live session token and issues a fresh pair
// inside one transaction, so no concurrent request ever observes a state
// with neither the old nor the new pair valid
func (s *AuthService) rotateSession(ctx context.Context, user models.User) (models.TokenPair, error) {
	var pair models.TokenPair

	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		mgr := s.tokens.WithStore(tx.Token())

		if _, err := mgr.RevokeAll(ctx, user.ID, models.SessionModes...); err != nil {
			return err
		}

		p, err := mgr.IssuePair(ctx, user)
		if err != nil {
			return err
		}

		pair = p
		return nil
	})
	if err != nil {
		return pair, fmt.Errorf("error while rotating session tokens. Err: %w", err)
	}

	return pair, nil
}
