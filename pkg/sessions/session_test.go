package sessions

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Toasts(t *testing.T) {
	s := New()
	s.Clean()
	assert.Nil(t, s.Drain())
	assert.False(t, s.Dirty())

	s.Push(LevelSuccess, "Added to cart")
	s.Push(LevelError, "Out of stock")
	assert.True(t, s.Dirty())

	got := s.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, "Added to cart", got[0].Message)
	assert.Equal(t, LevelError, got[1].Level)
	assert.Nil(t, s.Drain())
}

func TestSession_SettersTrackChanges(t *testing.T) {
	s := New()
	assert.NotEmpty(t, s.ID)
	s.Clean()

	s.SetCartID("")
	s.SetCountry("")
	assert.False(t, s.Dirty(), "unchanged values must not mark the session dirty")

	s.SetCartID("cart_1")
	assert.True(t, s.Dirty())
	s.Clean()
	s.SetCustomerToken("tok")
	assert.True(t, s.Dirty())
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	s := New()
	s.SetCartID("cart_1")
	s.Push(LevelInfo, "hello")
	require.NoError(t, store.Save(ctx, s))
	assert.False(t, s.Dirty())

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "cart_1", got.CartID)
	assert.Len(t, got.Toasts, 1)
	assert.Equal(t, now, got.UpdatedAt)

	// mutating the loaded copy must not leak into the store
	got.Drain()
	again, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, again.Toasts, 1)

	now = now.Add(2 * time.Hour)
	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	now = now.Add(-2 * time.Hour)
	require.NoError(t, store.Delete(ctx, s.ID))
	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	ctx := context.Background()
	store := NewRedisStore(client, "test:session:", time.Minute)
	s := New()
	s.SetCountry("dk")
	require.NoError(t, store.Save(ctx, s))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "dk", got.CountryCode)

	require.NoError(t, store.Delete(ctx, s.ID))
	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
