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

func Test_TokenRepo(t *testing.T) {
	t.Parallel() // It's ok to run in parallel with other tests, but not with subtests

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	createUser := func(t *testing.T, tx pgx.Tx) models.User {
		t.Helper()

		r := UserRepo{DB: tx}
		user, err := r.CreateUser(t.Context(), repository.CreateUserParams{
			Email:          "user@example.com",
			FullName:       "Test User",
			HashedPassword: "hashedpassword123",
			Role:           models.RoleStudent,
		})
		require.NoError(t, err)
		return user
	}

	record := func(user models.User, token string, mode models.TokenMode) models.TokenRecord {
		return models.TokenRecord{
			UserID:    user.ID,
			Token:     token,
			Mode:      mode,
			Type:      models.TokenTypeBearer,
			CreatedAt: time.Now().Truncate(time.Second),
			ExpiresAt: time.Now().Add(time.Hour).Truncate(time.Second),
		}
	}

	t.Run("save and get", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := TokenRepo{DB: tx}
			user := createUser(t, tx)

			saved, err := r.Save(t.Context(), record(user, "token-1", models.TokenModeAccess))
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, saved.ID, "id is assigned when missing")

			got, err := r.Get(t.Context(), "token-1")
			require.NoError(t, err)
			assert.Equal(t, saved.ID, got.ID)
			assert.Equal(t, user.ID, got.UserID)
			assert.Equal(t, models.TokenModeAccess, got.Mode)
			assert.False(t, got.Revoked)
			assert.False(t, got.Expired)
		})
	})

	t.Run("save duplicate token string", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := TokenRepo{DB: tx}
			user := createUser(t, tx)

			_, err := r.Save(t.Context(), record(user, "token-1", models.TokenModeAccess))
			require.NoError(t, err)

			_, err = r.Save(t.Context(), record(user, "token-1", models.TokenModeAccess))
			require.Error(t, err, "token string is unique")
		})
	})

	t.Run("get not found", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := TokenRepo{DB: tx}

			_, err := r.Get(t.Context(), "missing-token")
			assert.ErrorIs(t, err, apperrors.ErrTokenNotFound, "should return well known error")
		})
	})

	t.Run("get owner", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := TokenRepo{DB: tx}
			user := createUser(t, tx)

			_, err := r.Save(t.Context(), record(user, "token-1", models.TokenModeAccess))
			require.NoError(t, err)

			owner, err := r.GetOwner(t.Context(), "token-1")
			require.NoError(t, err)
			assert.Equal(t, user.ID, owner.ID)
			assert.Equal(t, user.Email, owner.Email)

			_, err = r.GetOwner(t.Context(), "missing-token")
			assert.ErrorIs(t, err, apperrors.ErrTokenNotFound)
		})
	})

	t.Run("revoke all touches only given modes", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := TokenRepo{DB: tx}
			user := createUser(t, tx)

			_, err := r.Save(t.Context(), record(user, "access-token", models.TokenModeAccess))
			require.NoError(t, err)
			_, err = r.Save(t.Context(), record(user, "refresh-token", models.TokenModeRefresh))
			require.NoError(t, err)
			_, err = r.Save(t.Context(), record(user, "reset-token", models.TokenModeResetPwd))
			require.NoError(t, err)

			count, err := r.RevokeAll(t.Context(), user.ID, models.SessionModes)
			require.NoError(t, err)
			assert.EqualValues(t, 2, count)

			got, err := r.Get(t.Context(), "reset-token")
			require.NoError(t, err)
			assert.False(t, got.Revoked, "other modes stay untouched")

			// Revoking again touches nothing
			count, err = r.RevokeAll(t.Context(), user.ID, models.SessionModes)
			require.NoError(t, err)
			assert.EqualValues(t, 0, count)
		})
	})

	t.Run("mark expired", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := TokenRepo{DB: tx}
			user := createUser(t, tx)

			_, err := r.Save(t.Context(), record(user, "token-1", models.TokenModeActivation))
			require.NoError(t, err)

			err = r.MarkExpired(t.Context(), "token-1")
			require.NoError(t, err)

			got, err := r.Get(t.Context(), "token-1")
			require.NoError(t, err)
			assert.True(t, got.Expired)

			err = r.MarkExpired(t.Context(), "missing-token")
			assert.ErrorIs(t, err, apperrors.ErrTokenNotFound)
		})
	})
}
