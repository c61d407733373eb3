package repository

import (
	"context"
	"testing"
	"time"

	"sparkclean/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSessionStore(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer client.Close()

	store := NewRedisSessionStore(client)
	ctx := context.Background()

	t.Run("StoreAndGetSession", func(t *testing.T) {
		session := &models.Session{
			ID:        "sess-1",
			UserID:    123,
			Email:     "jane@example.com",
			Role:      models.RoleCustomer,
			ExpiresAt: time.Now().Add(time.Hour),
		}

		require.NoError(t, store.StoreSession(ctx, session))

		got, err := store.GetSession(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, session.UserID, got.UserID)
		assert.Equal(t, session.Email, got.Email)
		assert.True(t, s.TTL("sparkclean:session:sess-1") > 0)
	})

	t.Run("SessionExpires", func(t *testing.T) {
		session := &models.Session{ID: "sess-2", UserID: 1, ExpiresAt: time.Now().Add(time.Minute)}
		require.NoError(t, store.StoreSession(ctx, session))

		s.FastForward(2 * time.Minute)

		_, err := store.GetSession(ctx, "sess-2")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("ExpiredSessionRejected", func(t *testing.T) {
		err := store.StoreSession(ctx, &models.Session{ID: "old", ExpiresAt: time.Now().Add(-time.Second)})
		assert.Error(t, err)
	})

	t.Run("CorruptSession", func(t *testing.T) {
		require.NoError(t, s.Set("sparkclean:session:bad", "{not json"))
		_, err := store.GetSession(ctx, "bad")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("RevokeSession", func(t *testing.T) {
		session := &models.Session{ID: "sess-3", UserID: 456, ExpiresAt: time.Now().Add(time.Hour)}
		require.NoError(t, store.StoreSession(ctx, session))

		require.NoError(t, store.RevokeSession(ctx, "sess-3"))

		_, err := store.GetSession(ctx, "sess-3")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("RateLimit", func(t *testing.T) {
		key := "login:jane@example.com"
		limit := 2
		window := time.Second

		allowed, err := store.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = store.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = store.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.False(t, allowed)

		assert.Equal(t, "3", mustGet(t, s, "sparkclean:rate_limit:"+key))
		assert.True(t, s.TTL("sparkclean:rate_limit:"+key) > 0)

		s.FastForward(window + time.Millisecond)

		allowed, err = store.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("NilClient", func(t *testing.T) {
		store := NewRedisSessionStore(nil)
		_, err := store.GetSession(ctx, "x")
		assert.ErrorIs(t, err, ErrNoRedisClient)
		assert.ErrorIs(t, Ping(ctx, nil), ErrNoRedisClient)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})

	t.Run("Close", func(t *testing.T) {
		assert.NoError(t, Close(nil))
		assert.NoError(t, Close(client))
	})
}

func mustGet(t *testing.T, s *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := s.Get(key)
	require.NoError(t, err)
	return v
}
