package ban

import (
	"context"
	"sync"
)

// Registry is an existence set of banned phone fingerprints. Presence alone
// denotes "banned"; entries carry no payload.
type Registry interface {
	IsBanned(ctx context.Context, fingerprint string) (bool, error)
	Ban(ctx context.Context, fingerprint string) error
	Unban(ctx context.Context, fingerprint string) error
}

type memoryRegistry struct {
	mu      sync.RWMutex
	entries map[string]struct{}
}

// NewMemoryRegistry builds an in-memory ban set for tests and dev runs.
func NewMemoryRegistry() Registry {
	return &memoryRegistry{entries: make(map[string]struct{})}
}

func (r *memoryRegistry) IsBanned(_ context.Context, fingerprint string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, banned := r.entries[fingerprint]
	return banned, nil
}

func (r *memoryRegistry) Ban(_ context.Context, fingerprint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[fingerprint] = struct{}{}
	return nil
}

func (r *memoryRegistry) Unban(_ context.Context, fingerprint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, fingerprint)
	return nil
}
