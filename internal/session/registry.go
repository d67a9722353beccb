package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Factory builds the store of a client that has none yet.
type Factory func(clientID string) *Store

// Registry keeps one Store per client and unmounts stores that went idle.
type Registry struct {
	newStore Factory
	idleTTL  time.Duration

	mu     sync.Mutex
	stores map[string]*Store
}

func NewRegistry(factory Factory, idleTTL time.Duration) *Registry {
	return &Registry{
		newStore: factory,
		idleTTL:  idleTTL,
		stores:   make(map[string]*Store),
	}
}

// Get returns the client's store, creating and initializing it on first use.
// Initialization runs in the background; callers wait on Ready if they need it.
func (r *Registry) Get(clientID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	store, ok := r.stores[clientID]
	if !ok {
		store = r.newStore(clientID)
		r.stores[clientID] = store
		go store.Initialize(context.Background())
	}
	store.Touch()
	return store
}

// Remove unmounts and forgets the client's store.
func (r *Registry) Remove(clientID string) {
	r.mu.Lock()
	store, ok := r.stores[clientID]
	delete(r.stores, clientID)
	r.mu.Unlock()

	if ok {
		store.Close()
	}
}

// Sweep unmounts stores idle for longer than the TTL and returns how many it removed.
func (r *Registry) Sweep(now time.Time) int {
	var idle []*Store

	r.mu.Lock()
	for id, store := range r.stores {
		if now.Sub(store.LastUsed()) > r.idleTTL {
			idle = append(idle, store)
			delete(r.stores, id)
		}
	}
	r.mu.Unlock()

	for _, store := range idle {
		store.Close()
	}
	return len(idle)
}

// Run sweeps periodically until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	interval := r.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := r.Sweep(now); n > 0 {
				slog.Debug("unmounted idle sessions", "count", n)
			}
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// Close unmounts every store.
func (r *Registry) Close() {
	r.mu.Lock()
	stores := r.stores
	r.stores = make(map[string]*Store)
	r.mu.Unlock()

	for _, store := range stores {
		store.Close()
	}
}
