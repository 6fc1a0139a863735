package store

import (
	"context"
	"sync"
)

// MemoryStore is a CredentialStore held in memory. It counts saves and can be
// told to fail them. This is only intended for use in tests.
type MemoryStore struct {
	mu      sync.Mutex
	creds   []Credential
	saves   int
	SaveErr error
}

// NewMemoryStore returns a store preloaded with creds
func NewMemoryStore(creds ...Credential) *MemoryStore {
	m := &MemoryStore{}
	m.creds = append(m.creds, creds...)
	return m
}

// Load returns a copy of the stored set
func (m *MemoryStore) Load(ctx context.Context) ([]Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Credential, len(m.creds))
	copy(out, m.creds)
	return out, nil
}

// Save replaces the stored set unless SaveErr is set
func (m *MemoryStore) Save(ctx context.Context, creds []Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.creds = append([]Credential(nil), creds...)
	m.saves++
	return nil
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}

// Saves returns how many saves succeeded
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Stored returns what the last successful save wrote
func (m *MemoryStore) Stored() []Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Credential, len(m.creds))
	copy(out, m.creds)
	return out
}
