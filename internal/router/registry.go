package router

import "sync"

// Session is a live authenticated handle on the remote service, bound to
// one account identity.
type Session struct {
	API       yamusicAPI
	UID       string
	AccountID int64
	// UserID is nil for the shared default account.
	UserID *int64
}

// registry caches sessions by account id, one per distinct credential
// identity, for the process lifetime. Creation is guarded by a per-key lock
// so concurrent first access cannot dial duplicate sessions.
type registry struct {
	mu      sync.Mutex
	entries map[int64]*registryEntry
}

type registryEntry struct {
	mu      sync.Mutex
	session *Session
}

func newRegistry() *registry {
	return &registry{entries: make(map[int64]*registryEntry)}
}

// acquire returns the entry for key, creating it if needed. The caller locks
// the entry while checking or filling its session.
func (r *registry) acquire(key int64) *registryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		e = &registryEntry{}
		r.entries[key] = e
	}
	return e
}

// evict drops the cached session for key. The next use redials.
func (r *registry) evict(key int64) {
	r.mu.Lock()
	e, ok := r.entries[key]
	r.mu.Unlock()
	if !ok {
		return
	}

	e.mu.Lock()
	e.session = nil
	e.mu.Unlock()
}

// replace installs a session for key, displacing any cached one.
func (r *registry) replace(key int64, s *Session) {
	e := r.acquire(key)
	e.mu.Lock()
	e.session = s
	e.mu.Unlock()
}
