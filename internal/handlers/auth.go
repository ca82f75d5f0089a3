package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mkalinin/classhub/internal/handlers/render"
	"github.com/mkalinin/classhub/internal/handlers/userctx"
	"github.com/mkalinin/classhub/internal/logger"
	"github.com/mkalinin/classhub/internal/models"
	"github.com/mkalinin/classhub/internal/service/auth"
)

type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func pairResponse(pair models.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
		TokenType:    string(models.TokenTypeBearer),
		ExpiresAt:    pair.Access.ExpiresAt,
	}
}

// renewedResponse is sent with 202 when an expired emailed link healed
// itself: a fresh link is on its way, nothing was consumed yet
type renewedResponse struct {
	Renewed       bool      `json:"renewed"`
	NewLinkExpiry time.Time `json:"new_link_expiry"`
}

func renderOutcome(w http.ResponseWriter, outcome auth.Outcome, onDone any) {
	if outcome.Renewed {
		render.JSONStatus(w, renewedResponse{Renewed: true, NewLinkExpiry: outcome.NewLinkExpiry}, http.StatusAccepted)
		return
	}
	render.JSON(w, onDone)
}

func handleRegister(s authService, l logger.Logger) http.Handler {
	type request struct {
		Email         string     `json:"email" validate:"required,email"`
		FullName      string     `json:"full_name" validate:"required,min=2,max=150"`
		Password      string     `json:"password" validate:"required,min=8"`
		Role          string     `json:"role" validate:"omitempty,oneof=student teacher"`
		InstitutionID *uuid.UUID `json:"institution_id"`
	}
	type response struct {
		ID      uuid.UUID `json:"id"`
		Email   string    `json:"email"`
		Message string    `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, err := s.Register(r.Context(), auth.RegisterParams{
			Email:         data.Email,
			FullName:      data.FullName,
			Password:      data.Password,
			Role:          models.Role(data.Role),
			InstitutionID: data.InstitutionID,
		})
		if err != nil {
			l.Warn("Registration failed", "error", err)
			serviceError(w, err)
			return
		}

		render.JSONStatus(w, response{
			ID:      user.ID,
			Email:   user.Email,
			Message: "Check your email for the activation link",
		}, http.StatusCreated)
	})
}

func handleActivate(s authService, l logger.Logger) http.Handler {
	type request struct {
		Email string `json:"email" validate:"required,email"`
		Token string `json:"token" validate:"required"`
	}
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		outcome, err := s.Activate(r.Context(), data.Email, data.Token)
		if err != nil {
			l.Warn("Activation failed", "error", err)
			serviceError(w, err)
			return
		}

		renderOutcome(w, outcome, response{Message: "Account activated"})
	})
}

func handleLogin(s authService, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	type tfaResponse struct {
		TFARequired bool `json:"tfa_required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		result, err := s.Login(r.Context(), data.Email, data.Password)
		if err != nil {
			l.Warn("Login failed", "error", err)
			serviceError(w, err)
			return
		}

		if result.TFARequired {
			render.JSON(w, tfaResponse{TFARequired: true})
			return
		}

		render.JSON(w, pairResponse(result.Pair))
	})
}

func handleOtpVerify(s authService, l logger.Logger) http.Handler {
	type request struct {
		Email string `json:"email" validate:"required,email"`
		Code  string `json:"code" validate:"required,len=6"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		result, err := s.VerifyOtpAndIssueTokens(r.Context(), data.Email, data.Code)
		if err != nil {
			l.Warn("OTP verification failed", "error", err)
			serviceError(w, err)
			return
		}

		render.JSON(w, pairResponse(result.Pair))
	})
}

func handleTokenRefresh(s authService, l logger.Logger) http.Handler {
	type request struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		access, err := s.RefreshAccessToken(r.Context(), data.RefreshToken)
		if err != nil {
			l.Warn("Token refresh failed", "error", err)
			serviceError(w, err)
			return
		}

		render.JSON(w, tokenResponse{
			AccessToken: access.Value,
			TokenType:   string(models.TokenTypeBearer),
			ExpiresAt:   access.ExpiresAt,
		})
	})
}

func handleLogout(s authService, l logger.Logger) http.Handler {
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())

		if err := s.Logout(r.Context(), user); err != nil {
			l.Error("Logout failed", "error", err, "user_id", user.ID)
			serviceError(w, err)
			return
		}

		render.JSON(w, response{Message: "Logged out"})
	})
}

func handlePasswordResetRequest(s authService, l logger.Logger) http.Handler {
	type request struct {
		Email string `json:"email" validate:"required,email"`
	}
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		if err := s.RequestPasswordReset(r.Context(), data.Email); err != nil {
			l.Warn("Password reset request failed", "error", err)
			serviceError(w, err)
			return
		}

		render.JSON(w, response{Message: "Check your email for the reset link"})
	})
}

func handlePasswordReset(s authService, l logger.Logger) http.Handler {
	type request struct {
		Email       string `json:"email" validate:"required,email"`
		Token       string `json:"token" validate:"required"`
		NewPassword string `json:"new_password" validate:"required,min=8"`
	}
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		outcome, err := s.ResetPassword(r.Context(), data.Email, data.Token, data.NewPassword)
		if err != nil {
			l.Warn("Password reset failed", "error", err)
			serviceError(w, err)
			return
		}

		renderOutcome(w, outcome, response{Message: "Password changed, log in again"})
	})
}

func handleEnable2FA(s authService, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	type response struct {
		tokenResponse
		Secret         string `json:"secret"`
		SecretImageURI string `json:"secret_image_uri"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		result, err := s.Enable2FA(r.Context(), data.Email, data.Password)
		if err != nil {
			l.Warn("Enabling 2FA failed", "error", err)
			serviceError(w, err)
			return
		}

		render.JSON(w, response{
			tokenResponse:  pairResponse(result.Pair),
			Secret:         result.Secret,
			SecretImageURI: result.SecretImageURI,
		})
	})
}

func handleDisable2FA(s authService, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
		Code     string `json:"code" validate:"required,len=6"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := s.Disable2FA(r.Context(), data.Email, data.Password, data.Code)
		if err != nil {
			l.Warn("Disabling 2FA failed", "error", err)
			serviceError(w, err)
			return
		}

		render.JSON(w, pairResponse(pair))
	})
}

func handleTwoFactorResetRequest(s authService, l logger.Logger) http.Handler {
	type request struct {
		Email string `json:"email" validate:"required,email"`
	}
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		if err := s.RequestTwoFactorReset(r.Context(), data.Email); err != nil {
			l.Warn("2FA reset request failed", "error", err)
			serviceError(w, err)
			return
		}

		render.JSON(w, response{Message: "Check your email for the reset link"})
	})
}

func handleTwoFactorResetConfirm(s authService, l logger.Logger) http.Handler {
	type request struct {
		Email string `json:"email" validate:"required,email"`
		Token string `json:"token" validate:"required"`
	}
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		outcome, err := s.ConfirmTwoFactorReset(r.Context(), data.Email, data.Token)
		if err != nil {
			l.Warn("2FA reset failed", "error", err)
			serviceError(w, err)
			return
		}

		renderOutcome(w, outcome, response{Message: "Two-factor auth disabled, set it up again if needed"})
	})
}
