package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mkalinin/classhub/internal/apperrors"
	"github.com/mkalinin/classhub/internal/models"
)

const (
	defaultSigningMethod = "HS256"
	defaultIssuer        = "classhub"
)

// Claims carried by every signed token
// The mode is deliberately not a claim: the token store is authoritative for it
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

type SignerConfig struct {
	// Secret key to sign tokens, required
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Issuer claim value
	Issuer string

	// Lifetime per token mode
	// A mode without a lifetime here cannot be issued: that is a config fault,
	// caught at construction, never surfaced to end users
	TTL map[models.TokenMode]time.Duration
}

// Signer creates and verifies self-contained signed tokens
// It never consults persisted state
type Signer struct {
	key    string
	alg    jwt.SigningMethod
	issuer string
	ttl    map[models.TokenMode]time.Duration
}

var allModes = []models.TokenMode{
	models.TokenModeAccess,
	models.TokenModeRefresh,
	models.TokenModeActivation,
	models.TokenModeResetPwd,
	models.TokenModeReset2FA,
	models.TokenModeConfirmEmail,
	models.TokenModeCourseJoin,
}

func NewSigner(cfg SignerConfig) (*Signer, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	if cfg.Issuer == "" {
		cfg.Issuer = defaultIssuer
	}

	for _, mode := range allModes {
		if cfg.TTL[mode] <= 0 {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrTokenModeNotConfigured, mode)
		}
	}

	return &Signer{
		key:    cfg.SecretKey,
		alg:    jwt.GetSigningMethod(cfg.Alg),
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
	}, nil
}

// Issue builds a signed token for the subject with the mode's configured lifetime
func (s *Signer) Issue(subject string, roles []string, mode models.TokenMode) (models.IssuedToken, error) {
	ttl, ok := s.ttl[mode]
	if !ok {
		return models.IssuedToken{}, fmt.Errorf("%w: %s", apperrors.ErrTokenModeNotConfigured, mode)
	}

	now := time.Now().Truncate(time.Second)
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(
		s.alg,
		Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				Subject:   subject,
				Issuer:    s.issuer,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			Roles: roles,
		},
	)
	signed, err := token.SignedString([]byte(s.key))
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing token. Err: %w", err)
	}

	return models.IssuedToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// Verify checks signature and format only; expiration is a separate question
// Every parse or signature problem collapses to ErrTokenUntrusted so callers
// cannot tell (and cannot leak) why exactly the token was rejected
func (s *Signer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (any, error) { return []byte(s.key), nil },
		jwt.WithValidMethods([]string{s.alg.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, apperrors.ErrTokenUntrusted
	}

	return claims, nil
}

// Expired compares the expiration claim with the current time
func (s *Signer) Expired(claims *Claims) bool {
	if claims.ExpiresAt == nil {
		return true
	}
	return claims.ExpiresAt.Before(time.Now())
}
