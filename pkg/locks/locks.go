package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by Release when the key expired or passed to another holder.
var ErrNotHeld = errors.New("lock not held")

// Locker grants short-lived exclusive keys. Acquire returns the holder's token,
// or "" when the key is already held. Release frees the key only while token
// still owns it, so a holder that outlived its TTL cannot drop the next one's lock.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)
	Release(ctx context.Context, key, token string) error
}

// releaseScript deletes the key only when it still carries the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker uses SET NX with a TTL so a crashed holder cannot keep the key forever.
type RedisLocker struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisLocker(client *redis.Client, keyPrefix string) *RedisLocker {
	if keyPrefix == "" {
		keyPrefix = "storefront:lock:"
	}
	return &RedisLocker{client: client, keyPrefix: keyPrefix}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.keyPrefix+key, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.keyPrefix + key}, token).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

type memLock struct {
	token   string
	expires time.Time
}

// MemoryLocker is the single-process equivalent of RedisLocker.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]memLock
	now  func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: map[string]memLock{}, now: time.Now}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if h, ok := l.held[key]; ok && now.Before(h.expires) {
		return "", nil
	}
	token := uuid.NewString()
	l.held[key] = memLock{token: token, expires: now.Add(ttl)}
	return token, nil
}

func (l *MemoryLocker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.held[key]
	if !ok || h.token != token || !l.now().Before(h.expires) {
		return ErrNotHeld
	}
	delete(l.held, key)
	return nil
}

var (
	_ Locker = (*RedisLocker)(nil)
	_ Locker = (*MemoryLocker)(nil)
)
