package repository

import (
	"context"
	"testing"
	"time"

	"sparkclean/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStore(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()
	clock := time.Now()
	store.now = func() time.Time { return clock }

	session := &models.Session{ID: "a", UserID: 1, ExpiresAt: clock.Add(time.Minute)}
	require.NoError(t, store.StoreSession(ctx, session))

	got, err := store.GetSession(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.UserID)

	clock = clock.Add(2 * time.Minute)
	_, err = store.GetSession(ctx, "a")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, store.StoreSession(ctx, &models.Session{ID: "b", ExpiresAt: clock.Add(time.Hour)}))
	require.NoError(t, store.RevokeSession(ctx, "b"))
	_, err = store.GetSession(ctx, "b")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemorySessionStore_RateLimit(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()
	clock := time.Now()
	store.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		allowed, err := store.CheckRateLimit(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, _ := store.CheckRateLimit(ctx, "k", 3, time.Minute)
	assert.False(t, allowed)

	// Other keys are independent
	allowed, _ = store.CheckRateLimit(ctx, "other", 3, time.Minute)
	assert.True(t, allowed)

	clock = clock.Add(time.Minute + time.Second)
	allowed, _ = store.CheckRateLimit(ctx, "k", 3, time.Minute)
	assert.True(t, allowed)
}
