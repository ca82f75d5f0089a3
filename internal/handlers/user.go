package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mkalinin/classhub/internal/handlers/render"
	"github.com/mkalinin/classhub/internal/handlers/userctx"
)

func handleUserMe() http.Handler {
	type response struct {
		ID            uuid.UUID  `json:"id"`
		Email         string     `json:"email"`
		FullName      string     `json:"full_name"`
		Role          string     `json:"role"`
		TFAEnabled    bool       `json:"tfa_enabled"`
		InstitutionID *uuid.UUID `json:"institution_id,omitempty"`
		CreatedAt     time.Time  `json:"created_at"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())

		render.JSON(w, response{
			ID:            user.ID,
			Email:         user.Email,
			FullName:      user.FullName,
			Role:          string(user.Role),
			TFAEnabled:    user.TFAEnabled,
			InstitutionID: user.InstitutionID,
			CreatedAt:     user.CreatedAt,
		})
	})
}
