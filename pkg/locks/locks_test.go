package locks

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	tok, err := l.Acquire(ctx, "cart_1", time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, tok)

	again, _ := l.Acquire(ctx, "cart_1", time.Minute)
	assert.Empty(t, again, "held key must not be granted twice")

	other, _ := l.Acquire(ctx, "cart_2", time.Minute)
	assert.NotEmpty(t, other, "keys are independent")

	now = now.Add(2 * time.Minute)
	next, _ := l.Acquire(ctx, "cart_1", time.Minute)
	require.NotEmpty(t, next, "expired key can be taken again")

	assert.ErrorIs(t, l.Release(ctx, "cart_1", tok), ErrNotHeld, "a stale holder cannot release the new lock")
	again, _ = l.Acquire(ctx, "cart_1", time.Minute)
	assert.Empty(t, again)

	require.NoError(t, l.Release(ctx, "cart_1", next))
	tok, _ = l.Acquire(ctx, "cart_1", time.Minute)
	assert.NotEmpty(t, tok)
}

func TestMemoryLocker_Concurrent(t *testing.T) {
	l := NewMemoryLocker()
	var granted int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tok, _ := l.Acquire(context.Background(), "k", time.Minute); tok != "" {
				atomic.AddInt32(&granted, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), granted)
}

func TestRedisLocker(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	ctx := context.Background()
	l := NewRedisLocker(client, "test:lock:"+time.Now().Format("150405.000000")+":")

	tok, err := l.Acquire(ctx, "cart_1", 200*time.Millisecond)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	again, err := l.Acquire(ctx, "cart_1", time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again, "held key must not be granted twice")

	time.Sleep(300 * time.Millisecond)
	next, err := l.Acquire(ctx, "cart_1", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, next, "expired key can be taken again")

	assert.ErrorIs(t, l.Release(ctx, "cart_1", tok), ErrNotHeld, "a stale holder cannot release the new lock")
	again, _ = l.Acquire(ctx, "cart_1", time.Minute)
	assert.Empty(t, again)

	require.NoError(t, l.Release(ctx, "cart_1", next))
	tok, err = l.Acquire(ctx, "cart_1", time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	require.NoError(t, l.Release(ctx, "cart_1", tok))
}
