package session

import (
	"context"
	"sync"
	"time"
)

// Storage is the persistence contract providers use for their current session. [Store],
// the SQLite store and [MemoryStore] implement it.
type Storage interface {
	Save(ctx context.Context, key string, sess *Session, ttl time.Duration) error
	// Load returns (nil, nil) when nothing is stored under key.
	Load(ctx context.Context, key string) (*Session, error)
	// Delete is idempotent.
	Delete(ctx context.Context, key string) error
}

// MemoryStore keeps sessions in process memory. TTLs are ignored.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

// Save stores a copy of sess. Like [Store.Save] it returns [ErrStaleWrite] when the
// stored session belongs to the same user and expires later.
func (m *MemoryStore) Save(_ context.Context, key string, sess *Session, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev := m.sessions[key]; prev != nil && prev.UserID == sess.UserID &&
		!sess.ExpiresAt.IsZero() && prev.ExpiresAt.After(sess.ExpiresAt) {
		return ErrStaleWrite
	}
	m.sessions[key] = sess.Clone()
	return nil
}

func (m *MemoryStore) Load(_ context.Context, key string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[key].Clone(), nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
	return nil
}

var (
	_ Storage = (*Store)(nil)
	_ Storage = (*MemoryStore)(nil)
)
