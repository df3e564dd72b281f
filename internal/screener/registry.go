package screener

import (
	"sync"

	"github.com/macks-labs/coinscreen/internal/criteria"
)

// Registry owns the per-user criteria stores and configuration
// sessions, keyed by the opaque user identity supplied by the
// transport. Users without their own store read the shared defaults;
// the first write gives them a private clone. Entries for different
// users are independent.
type Registry struct {
	mu       sync.RWMutex
	defaults *criteria.Store
	stores   map[string]*criteria.Store
	sessions map[string]session
}

// NewRegistry creates a registry around the default criteria store.
func NewRegistry(defaults *criteria.Store) *Registry {
	return &Registry{
		defaults: defaults,
		stores:   make(map[string]*criteria.Store),
		sessions: make(map[string]session),
	}
}

// SnapshotFor returns a value copy of the criteria visible to userID:
// their own store if they customized, the defaults otherwise.
func (r *Registry) SnapshotFor(userID string) criteria.Snapshot {
	r.mu.RLock()
	st, ok := r.stores[userID]
	r.mu.RUnlock()
	if ok {
		return st.Snapshot()
	}
	return r.defaults.Snapshot()
}

// OwnedStore returns userID's private store, cloning it from the
// defaults on first use.
func (r *Registry) OwnedStore(userID string) *criteria.Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.stores[userID]
	if !ok {
		st = r.defaults.Clone()
		r.stores[userID] = st
	}
	return st
}

// Customized reports whether userID has a private store.
func (r *Registry) Customized(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.stores[userID]
	return ok
}

// Session returns userID's session; ok is false when there is none,
// which means the user is idle.
func (r *Registry) Session(userID string) (session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// SetSession records userID's session, replacing any previous one.
func (r *Registry) SetSession(userID, key string, state SessionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[userID] = session{Key: key, State: state}
}

// ClearSession removes userID's session, reporting whether one existed.
func (r *Registry) ClearSession(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[userID]
	delete(r.sessions, userID)
	return ok
}
