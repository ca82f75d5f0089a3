package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mkalinin/classhub/internal/handlers/render"
	"github.com/mkalinin/classhub/internal/handlers/userctx"
	"github.com/mkalinin/classhub/internal/models"
)

type authService interface {
	Authenticate(ctx context.Context, accessToken string) (models.User, error)
}

// BearerToken extracts the token from the Authorization header
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")

	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}

	return token, true
}

// Auth resolves the user behind the bearer access token and puts it
// into the request context. Token validity is checked against the store
// on every request, so a revoked session dies immediately
func Auth(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := as.Authenticate(r.Context(), token)
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := userctx.New(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole guards a handler behind a minimal role
// Must be chained after Auth
func RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := userctx.FromContext(r.Context())
			if !ok || !user.Role.AtLeast(role) {
				render.ServiceError(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
