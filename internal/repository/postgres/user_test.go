package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkalinin/classhub/internal/apperrors"
	"github.com/mkalinin/classhub/internal/models"
	"github.com/mkalinin/classhub/internal/repository"
	"github.com/mkalinin/classhub/internal/testutil"
)

func Test_UserRepo(t *testing.T) {
	t.Parallel() // It's ok to run in parallel with other tests, but not with subtests

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	createParams := repository.CreateUserParams{
		Email:          "user@example.com",
		FullName:       "Test User",
		HashedPassword: "hashedpassword123",
		Role:           models.RoleStudent,
	}

	t.Run("create user ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			user, err := r.CreateUser(t.Context(), createParams)

			require.NoError(t, err)
			assert.Equal(t, "user@example.com", user.Email)
			assert.Equal(t, "Test User", user.FullName)
			assert.Equal(t, "hashedpassword123", user.HashedPassword)
			assert.Equal(t, models.RoleStudent, user.Role)
			assert.False(t, user.Enabled, "account starts disabled")
			assert.False(t, user.TFAEnabled)
			assert.Nil(t, user.TFASecret)
			assert.WithinDuration(t, time.Now(), user.CreatedAt, time.Second, "CreatedAt should be recent")
		})
	})

	t.Run("create user duplicate email", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			_, err := r.CreateUser(t.Context(), createParams)
			require.NoError(t, err)

			_, err = r.CreateUser(t.Context(), createParams)
			assert.ErrorIs(t, err, apperrors.ErrUserAlreadyExists, "should return well known error")
		})
	})

	t.Run("get user by id ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), createParams)
			require.NoError(t, err)

			got, err := r.GetUserByID(t.Context(), created.ID)

			require.NoError(t, err)
			assert.Equal(t, created.ID, got.ID)
			assert.Equal(t, created.Email, got.Email)
			assert.Equal(t, created.HashedPassword, got.HashedPassword)
			assert.Equal(t, created.CreatedAt, got.CreatedAt)
		})
	})

	t.Run("get user by id not found", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			_, err := r.GetUserByID(t.Context(), uuid.New())

			assert.ErrorIs(t, err, apperrors.ErrUserNotFound, "should return well known error")
		})
	})

	t.Run("get user by email ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), createParams)
			require.NoError(t, err)

			got, err := r.GetUserByEmail(t.Context(), created.Email)

			require.NoError(t, err)
			assert.Equal(t, created.ID, got.ID)
		})
	})

	t.Run("update password", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), createParams)
			require.NoError(t, err)

			err = r.UpdatePassword(t.Context(), created.ID, "anotherhash456")
			require.NoError(t, err)

			got, err := r.GetUserByID(t.Context(), created.ID)
			require.NoError(t, err)
			assert.Equal(t, "anotherhash456", got.HashedPassword)

			err = r.UpdatePassword(t.Context(), uuid.New(), "anotherhash456")
			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("set tfa", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), createParams)
			require.NoError(t, err)

			secret := "JBSWY3DPEHPK3PXP"
			err = r.SetTFA(t.Context(), created.ID, &secret, true)
			require.NoError(t, err)

			got, err := r.GetUserByID(t.Context(), created.ID)
			require.NoError(t, err)
			require.NotNil(t, got.TFASecret)
			assert.Equal(t, secret, *got.TFASecret)
			assert.True(t, got.TFAEnabled)

			// Clearing the secret disables 2FA completely
			err = r.SetTFA(t.Context(), created.ID, nil, false)
			require.NoError(t, err)

			got, err = r.GetUserByID(t.Context(), created.ID)
			require.NoError(t, err)
			assert.Nil(t, got.TFASecret)
			assert.False(t, got.TFAEnabled)
		})
	})

	t.Run("set enabled", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), createParams)
			require.NoError(t, err)

			err = r.SetEnabled(t.Context(), created.ID, true)
			require.NoError(t, err)

			got, err := r.GetUserByID(t.Context(), created.ID)
			require.NoError(t, err)
			assert.True(t, got.Enabled)

			err = r.SetEnabled(t.Context(), uuid.New(), true)
			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})
}
