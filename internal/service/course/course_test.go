package course

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkalinin/classhub/internal/apperrors"
	"github.com/mkalinin/classhub/internal/models"
	"github.com/mkalinin/classhub/internal/notification"
	"github.com/mkalinin/classhub/internal/repository"
	"github.com/mkalinin/classhub/internal/repository/postgres"
	"github.com/mkalinin/classhub/internal/service/token"
	"github.com/mkalinin/classhub/internal/testutil"
)

type captureNotifier struct {
	mu   sync.Mutex
	msgs []notification.Message
}

func (n *captureNotifier) Enqueue(msg notification.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *captureNotifier) last(t *testing.T) notification.Message {
	t.Helper()

	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.msgs, "expected at least one enqueued message")
	return n.msgs[len(n.msgs)-1]
}

func tokenFromMessage(t *testing.T, msg notification.Message) string {
	t.Helper()

	_, after, found := strings.Cut(msg.Body, "token=")
	require.True(t, found, "message body has to carry a token link: %q", msg.Body)

	return strings.Fields(after)[0]
}

func Test_CourseService(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	ttl := map[models.TokenMode]time.Duration{
		models.TokenModeAccess:       time.Hour,
		models.TokenModeRefresh:      time.Hour,
		models.TokenModeActivation:   time.Hour,
		models.TokenModeResetPwd:     time.Hour,
		models.TokenModeReset2FA:     time.Hour,
		models.TokenModeConfirmEmail: time.Hour,
		models.TokenModeCourseJoin:   time.Hour,
	}

	withService := func(t *testing.T, joinTTL time.Duration, fn func(svc *Service, n *captureNotifier, storage repository.Storage)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)

			modeTTL := make(map[models.TokenMode]time.Duration, len(ttl))
			for mode, d := range ttl {
				modeTTL[mode] = d
			}
			modeTTL[models.TokenModeCourseJoin] = joinTTL

			signer, err := token.NewSigner(token.SignerConfig{SecretKey: "test-secret-key", TTL: modeTTL})
			require.NoError(t, err)
			manager, err := token.NewManager(signer, storage.Token())
			require.NoError(t, err)

			n := &captureNotifier{}
			fn(NewService(storage, manager, n, nil, "http://localhost:8000"), n, storage)
		})
	}

	createUser := func(t *testing.T, storage repository.Storage, email string, role models.Role) models.User {
		t.Helper()

		user, err := storage.User().CreateUser(t.Context(), repository.CreateUserParams{
			Email:          email,
			FullName:       "Test User",
			HashedPassword: "hashedpassword123",
			Role:           role,
		})
		require.NoError(t, err)
		return user
	}

	createInstitution := func(t *testing.T, storage repository.Storage) models.Institution {
		t.Helper()

		inst, err := storage.Institution().Create(t.Context(), "Test School", "Springfield")
		require.NoError(t, err)
		return inst
	}

	t.Run("create course", func(t *testing.T) {
		withService(t, time.Hour, func(svc *Service, n *captureNotifier, storage repository.Storage) {
			inst := createInstitution(t, storage)
			teacher := createUser(t, storage, "teacher@example.com", models.RoleTeacher)
			student := createUser(t, storage, "student@example.com", models.RoleStudent)

			_, err := svc.CreateCourse(t.Context(), student, inst.ID, "Algebra", "Numbers and letters")
			require.ErrorIs(t, err, apperrors.ErrForbidden, "students can't create courses")

			created, err := svc.CreateCourse(t.Context(), teacher, inst.ID, "Algebra", "Numbers and letters")
			require.NoError(t, err)
			assert.Equal(t, teacher.ID, created.OwnerID)
			assert.Equal(t, inst.ID, created.InstitutionID)

			got, err := svc.GetCourse(t.Context(), created.ID)
			require.NoError(t, err)
			assert.Equal(t, "Algebra", got.Name)

			listed, err := svc.ListCourses(t.Context(), inst.ID)
			require.NoError(t, err)
			assert.Len(t, listed, 1)
		})
	})

	t.Run("create task", func(t *testing.T) {
		withService(t, time.Hour, func(svc *Service, n *captureNotifier, storage repository.Storage) {
			inst := createInstitution(t, storage)
			owner := createUser(t, storage, "owner@example.com", models.RoleTeacher)
			other := createUser(t, storage, "other@example.com", models.RoleTeacher)
			admin := createUser(t, storage, "admin@example.com", models.RoleAdmin)

			created, err := svc.CreateCourse(t.Context(), owner, inst.ID, "Algebra", "")
			require.NoError(t, err)

			deadline := time.Now().Add(7 * 24 * time.Hour).Truncate(time.Second)
			params := CreateTaskParams{
				CourseID: created.ID,
				Name:     "Homework 1",
				Body:     "Solve the equations",
				MaxScore: decimal.RequireFromString("12.50"),
				Deadline: &deadline,
			}

			_, err = svc.CreateTask(t.Context(), other, params)
			require.ErrorIs(t, err, apperrors.ErrForbidden, "only the owner or an admin may add tasks")

			task, err := svc.CreateTask(t.Context(), owner, params)
			require.NoError(t, err)
			assert.True(t, task.MaxScore.Equal(decimal.RequireFromString("12.50")), "score kept exactly, got %s", task.MaxScore)
			require.NotNil(t, task.Deadline)

			_, err = svc.CreateTask(t.Context(), admin, params)
			require.NoError(t, err, "admin may add tasks to any course")

			tasks, err := svc.ListTasks(t.Context(), created.ID)
			require.NoError(t, err)
			assert.Len(t, tasks, 2)
		})
	})

	t.Run("join flow", func(t *testing.T) {
		withService(t, time.Hour, func(svc *Service, n *captureNotifier, storage repository.Storage) {
			inst := createInstitution(t, storage)
			teacher := createUser(t, storage, "teacher@example.com", models.RoleTeacher)
			student := createUser(t, storage, "student@example.com", models.RoleStudent)

			created, err := svc.CreateCourse(t.Context(), teacher, inst.ID, "Algebra", "")
			require.NoError(t, err)

			require.NoError(t, svc.RequestJoin(t.Context(), student, created.ID))

			msg := n.last(t)
			assert.Equal(t, student.Email, msg.To)
			assert.Contains(t, msg.Subject, "Algebra")

			joinToken := tokenFromMessage(t, msg)
			outcome, err := svc.ConfirmJoin(t.Context(), student.Email, created.ID, joinToken)
			require.NoError(t, err)
			assert.False(t, outcome.Renewed)

			// The consumed link is dead
			_, err = svc.ConfirmJoin(t.Context(), student.Email, created.ID, joinToken)
			require.ErrorIs(t, err, apperrors.ErrTokenRevoked)

			// And the membership row is really there
			err = storage.Course().AddMember(t.Context(), created.ID, student.ID)
			require.ErrorIs(t, err, apperrors.ErrAlreadyMember)
		})
	})

	t.Run("join link is bound to its account", func(t *testing.T) {
		withService(t, time.Hour, func(svc *Service, n *captureNotifier, storage repository.Storage) {
			inst := createInstitution(t, storage)
			teacher := createUser(t, storage, "teacher@example.com", models.RoleTeacher)
			alice := createUser(t, storage, "alice@example.com", models.RoleStudent)
			bob := createUser(t, storage, "bob@example.com", models.RoleStudent)

			created, err := svc.CreateCourse(t.Context(), teacher, inst.ID, "Algebra", "")
			require.NoError(t, err)

			require.NoError(t, svc.RequestJoin(t.Context(), alice, created.ID))
			aliceToken := tokenFromMessage(t, n.last(t))

			_, err = svc.ConfirmJoin(t.Context(), bob.Email, created.ID, aliceToken)
			require.ErrorIs(t, err, apperrors.ErrTokenOwnerMismatch)
		})
	})

	t.Run("expired join link heals itself", func(t *testing.T) {
		withService(t, time.Nanosecond, func(svc *Service, n *captureNotifier, storage repository.Storage) {
			inst := createInstitution(t, storage)
			teacher := createUser(t, storage, "teacher@example.com", models.RoleTeacher)
			student := createUser(t, storage, "student@example.com", models.RoleStudent)

			created, err := svc.CreateCourse(t.Context(), teacher, inst.ID, "Algebra", "")
			require.NoError(t, err)

			require.NoError(t, svc.RequestJoin(t.Context(), student, created.ID))
			stale := tokenFromMessage(t, n.last(t))

			outcome, err := svc.ConfirmJoin(t.Context(), student.Email, created.ID, stale)
			require.NoError(t, err, "expired link is a soft outcome, not an error")
			assert.True(t, outcome.Renewed)

			fresh := tokenFromMessage(t, n.last(t))
			assert.NotEqual(t, stale, fresh, "a fresh link has to be mailed")

			// The stale link is dead for good now
			_, err = svc.ConfirmJoin(t.Context(), student.Email, created.ID, stale)
			require.ErrorIs(t, err, apperrors.ErrTokenRevoked)
		})
	})
}
