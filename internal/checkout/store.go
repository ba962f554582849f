package checkout

import (
	"context"
	"sync"
)

// Store persists sessions between requests. MarkSubmitted is the one-shot
// guard for the gateway handoff: it must succeed at most once per session
// until cleared.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	MarkSubmitted(ctx context.Context, id string) (bool, error)
	ClearSubmitted(ctx context.Context, id string) error
}

// MemoryStore backs tests and single-node development.
type MemoryStore struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	submitted map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:  make(map[string]*Session),
		submitted: make(map[string]bool),
	}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.clone(), nil
}

func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	delete(m.submitted, id)
	return nil
}

func (m *MemoryStore) MarkSubmitted(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitted[id] {
		return false, nil
	}
	m.submitted[id] = true
	return true, nil
}

func (m *MemoryStore) ClearSubmitted(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.submitted, id)
	return nil
}
