package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkalinin/classhub/internal/handlers/render"
	"github.com/mkalinin/classhub/internal/handlers/userctx"
	"github.com/mkalinin/classhub/internal/logger"
	"github.com/mkalinin/classhub/internal/models"
	"github.com/mkalinin/classhub/internal/service/course"
)

// pathID parses a uuid path segment, rendering the 400 itself on failure
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		render.ServiceError(w, "Invalid "+name, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

type courseResponse struct {
	ID            uuid.UUID `json:"id"`
	InstitutionID uuid.UUID `json:"institution_id"`
	OwnerID       uuid.UUID `json:"owner_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toCourseResponse(c models.Course) courseResponse {
	return courseResponse{
		ID:            c.ID,
		InstitutionID: c.InstitutionID,
		OwnerID:       c.OwnerID,
		Name:          c.Name,
		Description:   c.Description,
		CreatedAt:     c.CreatedAt,
	}
}

func handleCreateCourse(s courseService, l logger.Logger) http.Handler {
	type request struct {
		InstitutionID uuid.UUID `json:"institution_id" validate:"required"`
		Name          string    `json:"name" validate:"required,min=2,max=200"`
		Description   string    `json:"description" validate:"max=2000"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, _ := userctx.FromContext(r.Context())

		created, err := s.CreateCourse(r.Context(), user, data.InstitutionID, data.Name, data.Description)
		if err != nil {
			l.Warn("Course creation failed", "error", err)
			serviceError(w, err)
			return
		}

		render.JSONStatus(w, toCourseResponse(created), http.StatusCreated)
	})
}

func handleGetCourse(s courseService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "courseID")
		if !ok {
			return
		}

		found, err := s.GetCourse(r.Context(), id)
		if err != nil {
			serviceError(w, err)
			return
		}

		render.JSON(w, toCourseResponse(found))
	})
}

func handleListCourses(s courseService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		institutionID, err := uuid.Parse(r.URL.Query().Get("institution_id"))
		if err != nil {
			render.ServiceError(w, "Invalid institution_id", http.StatusBadRequest)
			return
		}

		courses, err := s.ListCourses(r.Context(), institutionID)
		if err != nil {
			serviceError(w, err)
			return
		}

		out := make([]courseResponse, 0, len(courses))
		for _, c := range courses {
			out = append(out, toCourseResponse(c))
		}
		render.JSON(w, out)
	})
}

func handleCreateTask(s courseService, l logger.Logger) http.Handler {
	type request struct {
		Name     string          `json:"name" validate:"required,min=2,max=200"`
		Body     string          `json:"body" validate:"max=10000"`
		MaxScore decimal.Decimal `json:"max_score" validate:"required"`
		Deadline *time.Time      `json:"deadline"`
	}
	type response struct {
		ID       uuid.UUID       `json:"id"`
		CourseID uuid.UUID       `json:"course_id"`
		Name     string          `json:"name"`
		Body     string          `json:"body,omitempty"`
		MaxScore decimal.Decimal `json:"max_score"`
		Deadline *time.Time      `json:"deadline,omitempty"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		courseID, ok := pathID(w, r, "courseID")
		if !ok {
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, _ := userctx.FromContext(r.Context())

		task, err := s.CreateTask(r.Context(), user, course.CreateTaskParams{
			CourseID: courseID,
			Name:     data.Name,
			Body:     data.Body,
			MaxScore: data.MaxScore,
			Deadline: data.Deadline,
		})
		if err != nil {
			l.Warn("Task creation failed", "error", err)
			serviceError(w, err)
			return
		}

		render.JSONStatus(w, response{
			ID:       task.ID,
			CourseID: task.CourseID,
			Name:     task.Name,
			Body:     task.Body,
			MaxScore: task.MaxScore,
			Deadline: task.Deadline,
		}, http.StatusCreated)
	})
}

func handleListTasks(s courseService, l logger.Logger) http.Handler {
	type taskResponse struct {
		ID       uuid.UUID       `json:"id"`
		Name     string          `json:"name"`
		MaxScore decimal.Decimal `json:"max_score"`
		Deadline *time.Time      `json:"deadline,omitempty"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		courseID, ok := pathID(w, r, "courseID")
		if !ok {
			return
		}

		tasks, err := s.ListTasks(r.Context(), courseID)
		if err != nil {
			serviceError(w, err)
			return
		}

		out := make([]taskResponse, 0, len(tasks))
		for _, t := range tasks {
			out = append(out, taskResponse{ID: t.ID, Name: t.Name, MaxScore: t.MaxScore, Deadline: t.Deadline})
		}
		render.JSON(w, out)
	})
}

func handleJoinRequest(s courseService, l logger.Logger) http.Handler {
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		courseID, ok := pathID(w, r, "courseID")
		if !ok {
			return
		}

		user, _ := userctx.FromContext(r.Context())

		if err := s.RequestJoin(r.Context(), user, courseID); err != nil {
			l.Warn("Course join request failed", "error", err)
			serviceError(w, err)
			return
		}

		render.JSON(w, response{Message: "Check your email for the confirmation link"})
	})
}

func handleJoinConfirm(s courseService, l logger.Logger) http.Handler {
	type request struct {
		Email string `json:"email" validate:"required,email"`
		Token string `json:"token" validate:"required"`
	}
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		courseID, ok := pathID(w, r, "courseID")
		if !ok {
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		outcome, err := s.ConfirmJoin(r.Context(), data.Email, courseID, data.Token)
		if err != nil {
			l.Warn("Course join confirmation failed", "error", err)
			serviceError(w, err)
			return
		}

		if outcome.Renewed {
			render.JSONStatus(w, renewedResponse{Renewed: true, NewLinkExpiry: outcome.NewLinkExpiry}, http.StatusAccepted)
			return
		}

		render.JSON(w, response{Message: "Joined the course"})
	})
}
