package credentials

import (
	"context"
	"sync"
)

// MemoryStore keeps credentials in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Credentials
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Credentials)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[key], nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key string, creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = creds
	return nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

var _ Store = (*MemoryStore)(nil)
