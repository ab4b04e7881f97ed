package sessions

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	s       Session
	expires time.Time
}

// MemoryStore keeps sessions in process memory. Intended for dev and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	ttl  time.Duration
	data map[string]memEntry
	now  func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, data: map[string]memEntry{}, now: time.Now}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	e, ok := m.data[id]
	m.mu.RUnlock()
	if !ok || m.now().After(e.expires) {
		return nil, ErrNotFound
	}
	s := e.s
	s.Toasts = append([]Toast(nil), e.s.Toasts...)
	return &s, nil
}

func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	s.UpdatedAt = m.now().UTC()
	cp := *s
	cp.Toasts = append([]Toast(nil), s.Toasts...)
	cp.dirty = false
	cp.replaced = ""
	m.mu.Lock()
	m.data[s.ID] = memEntry{s: cp, expires: m.now().Add(m.ttl)}
	// opportunistic sweep
	if len(m.data)%256 == 0 {
		now := m.now()
		for k, e := range m.data {
			if now.After(e.expires) {
				delete(m.data, k)
			}
		}
	}
	m.mu.Unlock()
	s.Clean()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.data, id)
	m.mu.Unlock()
	return nil
}

var _ Store = (*MemoryStore)(nil)

// Len reports the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
