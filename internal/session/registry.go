// Package session owns the per-session map state: a registry of named
// sessions, each holding one live document plus the set of viewer
// subscriptions receiving snapshots of it.
package session

import (
	"sort"
	"sync"

	"github.com/boettiger-lab/mcp-map-server/pkg/logging"
)

// DefaultKey is the well-known session used when a caller supplies no
// session identifier.
const DefaultKey = "default"

// Store is the registry surface the rest of the server depends on.
// Eviction is part of the surface so a time- or capacity-based policy
// can be added later without touching callers; nothing evicts today.
type Store interface {
	Get(key string) *Session
	Keys() []string
	Evict(key string)
}

// Registry keeps all sessions in one process-wide table. Sessions are
// created lazily on first reference and live for the process lifetime.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Get returns the session for key, creating it with a fresh default
// document on first reference. Concurrent callers resolving the same
// unseen key all receive the same instance.
func (r *Registry) Get(key string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	if !ok {
		s = newSession(key)
		r.sessions[key] = s
		logging.Debug("Sessions", "Created session %q", key)
	}
	return s
}

// Keys lists all known session keys, sorted for deterministic output.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.sessions))
	for k := range r.sessions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Evict drops a session from the registry. Live subscriptions on the
// evicted session keep their queues; they simply stop receiving
// updates once nothing mutates the detached document.
func (r *Registry) Evict(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, key)
}

var _ Store = (*Registry)(nil)
