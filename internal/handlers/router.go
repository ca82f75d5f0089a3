package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/mkalinin/classhub/internal/handlers/middleware"
	"github.com/mkalinin/classhub/internal/logger"
	"github.com/mkalinin/classhub/internal/models"
	"github.com/mkalinin/classhub/internal/service/auth"
	"github.com/mkalinin/classhub/internal/service/course"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	authService authService,
	courseService courseService,
	institutionService institutionService,
	logger logger.Logger,
) http.Handler {
	authMiddleware := middleware.Auth(authService)
	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(h)
	}
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	api := http.NewServeMux()

	api.Handle("POST /auth/register", handleRegister(authService, logger))
	api.Handle("POST /auth/activate", handleActivate(authService, logger))
	api.Handle("POST /auth/login", handleLogin(authService, logger))
	api.Handle("POST /auth/otp", handleOtpVerify(authService, logger))
	api.Handle("POST /auth/refresh", handleTokenRefresh(authService, logger))
	api.Handle("POST /auth/logout", withAuth(handleLogout(authService, logger)))
	api.Handle("POST /auth/password-reset/request", handlePasswordResetRequest(authService, logger))
	api.Handle("POST /auth/password-reset/confirm", handlePasswordReset(authService, logger))
	api.Handle("POST /auth/2fa/enable", handleEnable2FA(authService, logger))
	api.Handle("POST /auth/2fa/disable", handleDisable2FA(authService, logger))
	api.Handle("POST /auth/2fa/reset/request", handleTwoFactorResetRequest(authService, logger))
	api.Handle("POST /auth/2fa/reset/confirm", handleTwoFactorResetConfirm(authService, logger))

	api.Handle("GET /users/me", withAuth(handleUserMe()))

	api.Handle("POST /institutions", withAuth(adminOnly(handleCreateInstitution(institutionService, logger))))
	api.Handle("GET /institutions", handleListInstitutions(institutionService, logger))
	api.Handle("GET /institutions/{institutionID}", handleGetInstitution(institutionService, logger))
	api.Handle("POST /institutions/{institutionID}/groups", withAuth(handleCreateGroup(institutionService, logger)))
	api.Handle("GET /institutions/{institutionID}/groups", handleListGroups(institutionService, logger))
	api.Handle("POST /groups/{groupID}/members", withAuth(handleAddGroupMember(institutionService, logger)))
	api.Handle("DELETE /groups/{groupID}/members/{userID}", withAuth(handleRemoveGroupMember(institutionService, logger)))

	api.Handle("POST /courses", withAuth(handleCreateCourse(courseService, logger)))
	api.Handle("GET /courses", handleListCourses(courseService, logger))
	api.Handle("GET /courses/{courseID}", handleGetCourse(courseService, logger))
	api.Handle("POST /courses/{courseID}/tasks", withAuth(handleCreateTask(courseService, logger)))
	api.Handle("GET /courses/{courseID}/tasks", handleListTasks(courseService, logger))
	api.Handle("POST /courses/{courseID}/join", withAuth(handleJoinRequest(courseService, logger)))
	api.Handle("POST /courses/{courseID}/join/confirm", handleJoinConfirm(courseService, logger))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))

	handler := chain(root,
		middleware.Logger(logger),
	)

	return handler
}

type authService interface {
	// Register user with email and password and mail the activation link
	// Has to return apperrors.ErrUserAlreadyExists if email is taken
	Register(ctx context.Context, arg auth.RegisterParams) (models.User, error)

	// Activate account behind an emailed token
	// Renewed outcome means the link expired and a fresh one was mailed
	Activate(ctx context.Context, email string, token string) (auth.Outcome, error)

	// Login user with email and password
	// With 2FA enabled no tokens are issued until the code is verified
	Login(ctx context.Context, email string, password string) (auth.LoginResult, error)

	// VerifyOtpAndIssueTokens finishes a two-factor login
	VerifyOtpAndIssueTokens(ctx context.Context, email string, code string) (auth.LoginResult, error)

	// RefreshAccessToken exchanges a refresh token for a fresh access token
	RefreshAccessToken(ctx context.Context, refreshToken string) (models.IssuedToken, error)

	// Logout revokes the session tokens. Idempotent
	Logout(ctx context.Context, user models.User) error

	// Authenticate resolves the user behind a bearer access token
	Authenticate(ctx context.Context, accessToken string) (models.User, error)

	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email string, token string, newPassword string) (auth.Outcome, error)

	Enable2FA(ctx context.Context, email string, password string) (auth.Enable2FAResult, error)
	Disable2FA(ctx context.Context, email string, password string, code string) (models.TokenPair, error)
	RequestTwoFactorReset(ctx context.Context, email string) error
	ConfirmTwoFactorReset(ctx context.Context, email string, token string) (auth.Outcome, error)
}

type courseService interface {
	CreateCourse(ctx context.Context, actor models.User, institutionID uuid.UUID, name string, description string) (models.Course, error)
	GetCourse(ctx context.Context, id uuid.UUID) (models.Course, error)
	ListCourses(ctx context.Context, institutionID uuid.UUID) ([]models.Course, error)
	CreateTask(ctx context.Context, actor models.User, arg course.CreateTaskParams) (models.Task, error)
	ListTasks(ctx context.Context, courseID uuid.UUID) ([]models.Task, error)

	// RequestJoin mails a join confirmation link to the user
	RequestJoin(ctx context.Context, user models.User, courseID uuid.UUID) error

	// ConfirmJoin consumes the emailed token and adds the member
	ConfirmJoin(ctx context.Context, email string, courseID uuid.UUID, token string) (course.JoinOutcome, error)
}

type institutionService interface {
	Create(ctx context.Context, actor models.User, name string, city string) (models.Institution, error)
	Get(ctx context.Context, id uuid.UUID) (models.Institution, error)
	List(ctx context.Context) ([]models.Institution, error)
	CreateGroup(ctx context.Context, actor models.User, institutionID uuid.UUID, name string) (models.StudyGroup, error)
	ListGroups(ctx context.Context, institutionID uuid.UUID) ([]models.StudyGroup, error)
	AddGroupMember(ctx context.Context, actor models.User, groupID uuid.UUID, userID uuid.UUID) error
	RemoveGroupMember(ctx context.Context, actor models.User, groupID uuid.UUID, userID uuid.UUID) error
}
