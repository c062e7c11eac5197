package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/danilokhury/termdock/internal/shared/types"
)

// RegistryStore persists the ordered session registry. Satisfied by
// *state.Store.
type RegistryStore interface {
	SaveRegistry(ctx context.Context, entries []types.RegistryEntry) error
	LoadRegistry(ctx context.Context) ([]types.RegistryEntry, error)
}

// Registry is the ordered, persisted list of sessions the client believes
// exist. Every mutation writes through to the store; the in-memory copy is
// only a cache of the last successful write.
type Registry struct {
	mu      sync.Mutex
	store   RegistryStore
	entries []types.RegistryEntry
}

// NewRegistry creates a registry backed by the given store.
func NewRegistry(store RegistryStore) *Registry {
	return &Registry{store: store}
}

// Load reads the persisted entries into memory.
func (r *Registry) Load(ctx context.Context) ([]types.RegistryEntry, error) {
	entries, err := r.store.LoadRegistry(ctx)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	r.mu.Lock()
	r.entries = entries
	r.mu.Unlock()
	return append([]types.RegistryEntry(nil), entries...), nil
}

// Entries returns a copy of the current entries in order.
func (r *Registry) Entries() []types.RegistryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.RegistryEntry(nil), r.entries...)
}

// Add appends an entry and persists.
func (r *Registry) Add(ctx context.Context, entry types.RegistryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == entry.ID {
			return fmt.Errorf("registry: duplicate session id %s", entry.ID)
		}
	}
	next := append(append([]types.RegistryEntry(nil), r.entries...), entry)
	return r.commitLocked(ctx, next)
}

// Remove drops an entry by id and persists. Removing an absent id is a
// no-op.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make([]types.RegistryEntry, 0, len(r.entries))
	found := false
	for _, e := range r.entries {
		if e.ID == id {
			found = true
			continue
		}
		next = append(next, e)
	}
	if !found {
		return nil
	}
	return r.commitLocked(ctx, next)
}

// Update mutates one entry in place and persists.
func (r *Registry) Update(ctx context.Context, id string, fn func(*types.RegistryEntry)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := append([]types.RegistryEntry(nil), r.entries...)
	for i := range next {
		if next[i].ID == id {
			fn(&next[i])
			return r.commitLocked(ctx, next)
		}
	}
	return fmt.Errorf("registry: unknown session id %s", id)
}

// Replace swaps the whole list and persists. Used by boot reconciliation
// and snapshot restore, which both rebuild the registry from scratch.
func (r *Registry) Replace(ctx context.Context, entries []types.RegistryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commitLocked(ctx, append([]types.RegistryEntry(nil), entries...))
}

func (r *Registry) commitLocked(ctx context.Context, next []types.RegistryEntry) error {
	if err := r.store.SaveRegistry(ctx, next); err != nil {
		return fmt.Errorf("persist registry: %w", err)
	}
	r.entries = next
	return nil
}
