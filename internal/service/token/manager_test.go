package token

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkalinin/classhub/internal/apperrors"
	"github.com/mkalinin/classhub/internal/models"
	"github.com/mkalinin/classhub/internal/repository"
	"github.com/mkalinin/classhub/internal/repository/postgres"
	"github.com/mkalinin/classhub/internal/testutil"
)

func Test_Manager(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	newSigner := func(t *testing.T, ttl map[models.TokenMode]time.Duration) *Signer {
		signer, err := NewSigner(SignerConfig{SecretKey: "test-secret-key", TTL: ttl})
		require.NoError(t, err)
		return signer
	}

	// Run fn with a manager bound to a rolled back transaction
	withTx := func(t *testing.T, ttl map[models.TokenMode]time.Duration, fn func(m *Manager, storage repository.Storage)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)

			m, err := NewManager(newSigner(t, ttl), storage.Token())
			require.NoError(t, err)

			fn(m, storage)
		})
	}

	createUser := func(t *testing.T, storage repository.Storage) models.User {
		user, err := storage.User().CreateUser(t.Context(), repository.CreateUserParams{
			Email:          "user@example.com",
			FullName:       "Test User",
			HashedPassword: "hashed_password",
			Role:           models.RoleStudent,
		})
		require.NoError(t, err)
		return user
	}

	t.Run("new requires signer and repo", func(t *testing.T) {
		_, err := NewManager(nil, nil)
		require.Error(t, err)

		_, err = NewManager(newSigner(t, testTTL()), nil)
		require.Error(t, err)
	})

	t.Run("IssueAndPersist", func(t *testing.T) {
		withTx(t, testTTL(), func(m *Manager, storage repository.Storage) {
			user := createUser(t, storage)

			issued, err := m.IssueAndPersist(t.Context(), user, models.TokenModeActivation)
			require.NoError(t, err)
			require.NotEmpty(t, issued.Value)

			record, err := storage.Token().Get(t.Context(), issued.Value)
			require.NoError(t, err)
			assert.Equal(t, user.ID, record.UserID)
			assert.Equal(t, models.TokenModeActivation, record.Mode)
			assert.Equal(t, models.TokenTypeBearer, record.Type)
			assert.False(t, record.Revoked)
			assert.False(t, record.Expired)
			assert.WithinDuration(t, issued.ExpiresAt, record.ExpiresAt, time.Second)
		})
	})

	t.Run("IssuePair persists both session tokens", func(t *testing.T) {
		withTx(t, testTTL(), func(m *Manager, storage repository.Storage) {
			user := createUser(t, storage)

			pair, err := m.IssuePair(t.Context(), user)
			require.NoError(t, err)

			require.NoError(t, m.Validate(t.Context(), pair.Access.Value, models.TokenModeAccess))
			require.NoError(t, m.Validate(t.Context(), pair.Refresh.Value, models.TokenModeRefresh))
		})
	})

	t.Run("Validate", func(t *testing.T) {
		t.Run("garbage is untrusted", func(t *testing.T) {
			withTx(t, testTTL(), func(m *Manager, storage repository.Storage) {
				err := m.Validate(t.Context(), "garbage", models.TokenModeAccess)
				require.ErrorIs(t, err, apperrors.ErrTokenUntrusted)
			})
		})

		t.Run("well signed but unsaved token is not found", func(t *testing.T) {
			withTx(t, testTTL(), func(m *Manager, storage repository.Storage) {
				// Same key, but issued past the store
				issued, err := newSigner(t, testTTL()).Issue("user@example.com", nil, models.TokenModeAccess)
				require.NoError(t, err)

				err = m.Validate(t.Context(), issued.Value, models.TokenModeAccess)
				require.ErrorIs(t, err, apperrors.ErrTokenNotFound)
			})
		})

		t.Run("mode mismatch reads as not found", func(t *testing.T) {
			withTx(t, testTTL(), func(m *Manager, storage repository.Storage) {
				user := createUser(t, storage)

				issued, err := m.IssueAndPersist(t.Context(), user, models.TokenModeRefresh)
				require.NoError(t, err)

				err = m.Validate(t.Context(), issued.Value, models.TokenModeAccess)
				require.ErrorIs(t, err, apperrors.ErrTokenNotFound)
			})
		})

		t.Run("revoked token", func(t *testing.T) {
			withTx(t, testTTL(), func(m *Manager, storage repository.Storage) {
				user := createUser(t, storage)

				issued, err := m.IssueAndPersist(t.Context(), user, models.TokenModeAccess)
				require.NoError(t, err)

				count, err := m.RevokeAll(t.Context(), user.ID, models.TokenModeAccess)
				require.NoError(t, err)
				require.EqualValues(t, 1, count)

				err = m.Validate(t.Context(), issued.Value, models.TokenModeAccess)
				require.ErrorIs(t, err, apperrors.ErrTokenRevoked)
			})
		})

		t.Run("expired token marks the record", func(t *testing.T) {
			ttl := testTTL()
			ttl[models.TokenModeActivation] = time.Nanosecond

			withTx(t, ttl, func(m *Manager, storage repository.Storage) {
				user := createUser(t, storage)

				issued, err := m.IssueAndPersist(t.Context(), user, models.TokenModeActivation)
				require.NoError(t, err)

				err = m.Validate(t.Context(), issued.Value, models.TokenModeActivation)
				require.ErrorIs(t, err, apperrors.ErrTokenExpired)

				record, err := storage.Token().Get(t.Context(), issued.Value)
				require.NoError(t, err)
				assert.True(t, record.Expired, "observed expiry has to be persisted")
			})
		})

		t.Run("revoked wins over expired", func(t *testing.T) {
			// A replayed revoked token must never look renewable
			ttl := testTTL()
			ttl[models.TokenModeActivation] = time.Nanosecond

			withTx(t, ttl, func(m *Manager, storage repository.Storage) {
				user := createUser(t, storage)

				issued, err := m.IssueAndPersist(t.Context(), user, models.TokenModeActivation)
				require.NoError(t, err)

				_, err = m.RevokeAll(t.Context(), user.ID, models.TokenModeActivation)
				require.NoError(t, err)

				err = m.Validate(t.Context(), issued.Value, models.TokenModeActivation)
				require.ErrorIs(t, err, apperrors.ErrTokenRevoked)
			})
		})
	})

	t.Run("RevokeAll is idempotent", func(t *testing.T) {
		withTx(t, testTTL(), func(m *Manager, storage repository.Storage) {
			user := createUser(t, storage)

			_, err := m.IssuePair(t.Context(), user)
			require.NoError(t, err)

			count, err := m.RevokeAll(t.Context(), user.ID, models.SessionModes...)
			require.NoError(t, err)
			assert.EqualValues(t, 2, count)

			count, err = m.RevokeAll(t.Context(), user.ID, models.SessionModes...)
			require.NoError(t, err)
			assert.EqualValues(t, 0, count, "nothing left to revoke")
		})
	})

	t.Run("ResolveOwner", func(t *testing.T) {
		withTx(t, testTTL(), func(m *Manager, storage repository.Storage) {
			user := createUser(t, storage)

			issued, err := m.IssueAndPersist(t.Context(), user, models.TokenModeAccess)
			require.NoError(t, err)

			owner, err := m.ResolveOwner(t.Context(), issued.Value)
			require.NoError(t, err)
			assert.Equal(t, user.ID, owner.ID)
			assert.Equal(t, user.Email, owner.Email)

			_, err = m.ResolveOwner(t.Context(), "unknown-token")
			require.ErrorIs(t, err, apperrors.ErrTokenNotFound)
		})
	})
}
