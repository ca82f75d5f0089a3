package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mkalinin/classhub/internal/handlers/render"
	"github.com/mkalinin/classhub/internal/handlers/userctx"
	"github.com/mkalinin/classhub/internal/logger"
	"github.com/mkalinin/classhub/internal/models"
)

type institutionResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	City      string    `json:"city,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toInstitutionResponse(i models.Institution) institutionResponse {
	return institutionResponse{ID: i.ID, Name: i.Name, City: i.City, CreatedAt: i.CreatedAt}
}

type groupResponse struct {
	ID            uuid.UUID `json:"id"`
	InstitutionID uuid.UUID `json:"institution_id"`
	Name          string    `json:"name"`
}

func handleCreateInstitution(s institutionService, l logger.Logger) http.Handler {
	type request struct {
		Name string `json:"name" validate:"required,min=2,max=200"`
		City string `json:"city" validate:"max=100"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, _ := userctx.FromContext(r.Context())

		created, err := s.Create(r.Context(), user, data.Name, data.City)
		if err != nil {
			l.Warn("Institution creation failed", "error", err)
			serviceError(w, err)
			return
		}

		render.JSONStatus(w, toInstitutionResponse(created), http.StatusCreated)
	})
}

func handleGetInstitution(s institutionService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "institutionID")
		if !ok {
			return
		}

		found, err := s.Get(r.Context(), id)
		if err != nil {
			serviceError(w, err)
			return
		}

		render.JSON(w, toInstitutionResponse(found))
	})
}

func handleListInstitutions(s institutionService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		institutions, err := s.List(r.Context())
		if err != nil {
			serviceError(w, err)
			return
		}

		out := make([]institutionResponse, 0, len(institutions))
		for _, i := range institutions {
			out = append(out, toInstitutionResponse(i))
		}
		render.JSON(w, out)
	})
}

func handleCreateGroup(s institutionService, l logger.Logger) http.Handler {
	type request struct {
		Name string `json:"name" validate:"required,min=1,max=100"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		institutionID, ok := pathID(w, r, "institutionID")
		if !ok {
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, _ := userctx.FromContext(r.Context())

		group, err := s.CreateGroup(r.Context(), user, institutionID, data.Name)
		if err != nil {
			l.Warn("Group creation failed", "error", err)
			serviceError(w, err)
			return
		}

		render.JSONStatus(w, groupResponse{ID: group.ID, InstitutionID: group.InstitutionID, Name: group.Name}, http.StatusCreated)
	})
}

func handleListGroups(s institutionService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		institutionID, ok := pathID(w, r, "institutionID")
		if !ok {
			return
		}

		groups, err := s.ListGroups(r.Context(), institutionID)
		if err != nil {
			serviceError(w, err)
			return
		}

		out := make([]groupResponse, 0, len(groups))
		for _, g := range groups {
			out = append(out, groupResponse{ID: g.ID, InstitutionID: g.InstitutionID, Name: g.Name})
		}
		render.JSON(w, out)
	})
}

func handleAddGroupMember(s institutionService, l logger.Logger) http.Handler {
	type request struct {
		UserID uuid.UUID `json:"user_id" validate:"required"`
	}
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		groupID, ok := pathID(w, r, "groupID")
		if !ok {
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, _ := userctx.FromContext(r.Context())

		if err := s.AddGroupMember(r.Context(), user, groupID, data.UserID); err != nil {
			l.Warn("Adding group member failed", "error", err)
			serviceError(w, err)
			return
		}

		render.JSONStatus(w, response{Message: "Member added"}, http.StatusCreated)
	})
}

func handleRemoveGroupMember(s institutionService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		groupID, ok := pathID(w, r, "groupID")
		if !ok {
			return
		}
		userID, ok := pathID(w, r, "userID")
		if !ok {
			return
		}

		user, _ := userctx.FromContext(r.Context())

		if err := s.RemoveGroupMember(r.Context(), user, groupID, userID); err != nil {
			l.Warn("Removing group member failed", "error", err)
			serviceError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}
