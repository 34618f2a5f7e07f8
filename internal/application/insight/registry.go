package insight

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bryanwahyu/automaton-insight/internal/application"
)

const defaultRegistrySize = 1024

// Registry hands out one Slot per tenant and slot name. It is bounded; the
// least recently used slot is closed when the bound is hit.
type Registry struct {
	invoker Invoker
	clock   application.Clock

	mu    sync.Mutex
	slots *lru.Cache[string, *Slot]
}

// NewRegistry creates a registry holding at most size slots.
func NewRegistry(size int, inv Invoker, clock application.Clock) (*Registry, error) {
	if size <= 0 {
		size = defaultRegistrySize
	}
	cache, err := lru.NewWithEvict[string, *Slot](size, func(_ string, s *Slot) {
		go s.Close()
	})
	if err != nil {
		return nil, err
	}
	return &Registry{invoker: inv, clock: clock, slots: cache}, nil
}

func slotKey(tenant, name string) string { return tenant + "/" + name }

// Slot returns the slot for tenant/name, creating it on first use.
func (r *Registry) Slot(tenant, name string) *Slot {
	key := slotKey(tenant, name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.slots.Get(key); ok {
		return s
	}
	s := NewSlot(name, r.invoker, r.clock)
	r.slots.Add(key, s)
	return s
}

// Lookup returns an existing slot without creating one.
func (r *Registry) Lookup(tenant, name string) (*Slot, bool) {
	return r.slots.Get(slotKey(tenant, name))
}

// Len reports how many slots are held.
func (r *Registry) Len() int { return r.slots.Len() }

// Close closes every slot and empties the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range r.slots.Keys() {
		if s, ok := r.slots.Peek(key); ok {
			s.Close()
		}
	}
	r.slots.Purge()
}
