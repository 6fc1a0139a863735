package store

import (
	"context"
	"fmt"
	"sync"
)

// Registry is the in-memory set of registered athletes backed by a
// CredentialStore. Every mutation persists the full set before returning.
// It is safe for concurrent use; writes are serialized.
type Registry struct {
	mu    sync.Mutex
	store CredentialStore
	creds []Credential
	dirty bool // a mutation is held in memory that the store has not accepted yet
}

// OpenRegistry loads the current credential set from s
func OpenRegistry(ctx context.Context, s CredentialStore) (*Registry, error) {
	r := &Registry{store: s}
	if err := r.Reload(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload replaces the in-memory set with what the store holds, picking up
// records added outside this process. If an earlier save failed, the pending
// set is flushed first; tokens that only exist in memory are never dropped.
func (r *Registry) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dirty {
		if err := r.persistLocked(ctx); err != nil {
			return fmt.Errorf("flushing pending credentials: %w", err)
		}
	}

	creds, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	r.creds = creds
	return nil
}

// Users returns a snapshot of every credential in registration order
func (r *Registry) Users() []Credential {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Credential, len(r.creds))
	copy(out, r.creds)
	return out
}

// Len returns the number of registered users
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.creds)
}

// Get returns the credential stored under key
func (r *Registry) Get(key string) (Credential, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.indexLocked(key); i >= 0 {
		return r.creds[i], true
	}
	return Credential{}, false
}

// Update replaces the record stored under key with c and persists the set.
// When persisting fails the new record is still kept in memory (a refresh
// token may already have been consumed) and is retried by Flush or Reload.
func (r *Registry) Update(ctx context.Context, key string, c Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(key)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownUser, key)
	}
	if c.ID != 0 {
		if j := r.indexLocked(c.Key()); j >= 0 && j != i {
			return fmt.Errorf("%w: %d", ErrDuplicateUser, c.ID)
		}
	}

	r.creds[i] = c
	return r.persistLocked(ctx)
}

// Register adds c unless an athlete with the same id is already present, in
// which case the existing record is left untouched and added is false.
// A placeholder (name only, no id) whose name matches c is filled in place,
// keeping its position in the registry.
func (r *Registry) Register(ctx context.Context, c Credential) (added bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID != 0 && r.indexLocked(c.Key()) >= 0 {
		return false, nil
	}

	if c.ID != 0 && c.Name != "" {
		if j := r.indexLocked(Credential{Name: c.Name}.Key()); j >= 0 {
			r.creds[j] = c
			if err := r.persistLocked(ctx); err != nil {
				return true, err
			}
			return true, nil
		}
	}

	r.creds = append(r.creds, c)
	if err := r.persistLocked(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// Flush persists the set if an earlier save failed
func (r *Registry) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.dirty {
		return nil
	}
	return r.persistLocked(ctx)
}

// Dirty reports whether in-memory changes are waiting to be persisted
func (r *Registry) Dirty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirty
}

func (r *Registry) persistLocked(ctx context.Context) error {
	snapshot := make([]Credential, len(r.creds))
	copy(snapshot, r.creds)

	if err := r.store.Save(ctx, snapshot); err != nil {
		r.dirty = true
		return fmt.Errorf("persisting credentials: %w", err)
	}
	r.dirty = false
	return nil
}

func (r *Registry) indexLocked(key string) int {
	for i, c := range r.creds {
		if c.Key() == key {
			return i
		}
	}
	return -1
}
