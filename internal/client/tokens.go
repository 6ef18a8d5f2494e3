package client

import "sync"

// TokenStore holds the bearer token of the current session.
// Implementations must be safe for concurrent use.
type TokenStore interface {
	Save(token string)
	Load() (string, bool)
	Clear()
	IsPresent() bool
}

// MemoryTokenStore keeps the token in process memory only, so it never
// outlives the interactive session.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
	set   bool
}

// NewMemoryTokenStore returns an empty store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

// Save overwrites any previous token.
func (s *MemoryTokenStore) Save(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.set = true
}

func (s *MemoryTokenStore) Load() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.set
}

// Clear is a no-op when the store is already empty.
func (s *MemoryTokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.set = false
}

func (s *MemoryTokenStore) IsPresent() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set
}
