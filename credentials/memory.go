package credentials

import "sync"

// Memory is an in-process Store guarded by a mutex. It is the default
// backend for programs that receive tokens at startup and never persist
// them.
type Memory struct {
	mu  sync.RWMutex
	set TokenSet
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// NewMemoryWith creates an in-memory store seeded with the given tokens.
func NewMemoryWith(set TokenSet) *Memory {
	return &Memory{set: set}
}

func (m *Memory) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.set.AccessToken
}

func (m *Memory) RefreshToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.set.RefreshToken
}

func (m *Memory) Expired() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.set.Expired(ExpiryLeeway)
}

func (m *Memory) Save(set TokenSet) error {
	m.mu.Lock()
	m.set = set
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	m.set = TokenSet{}
	m.mu.Unlock()
	return nil
}
