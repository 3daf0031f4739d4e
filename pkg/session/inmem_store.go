package session

import (
	"context"
	"sync"
)

// InMemStore implements Store using an in-memory map.
// Session data is isolated per key, so concurrent flows in different
// browser sessions never observe each other's state.
type InMemStore struct {
	sessions map[string]Data
	mu       sync.RWMutex
}

// NewInMemStore creates a new in-memory session store
func NewInMemStore() *InMemStore {
	return &InMemStore{
		sessions: make(map[string]Data),
	}
}

// Load returns the session data for the given key
func (s *InMemStore) Load(ctx context.Context, key string) (Data, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.sessions[key]
	if !exists {
		return Data{}, ErrNotFound
	}
	return data, nil
}

// Save stores the session data under the given key
func (s *InMemStore) Save(ctx context.Context, key string, data Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[key] = data
	return nil
}

// Delete removes the session data for the given key
func (s *InMemStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, key)
	return nil
}

// Count returns the number of stored sessions (useful for testing/monitoring)
func (s *InMemStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
