// Package guard provides per-session in-flight permits shared by every
// lifecycle driver. A single registry (rather than one dedup set per driver)
// means two drivers whose eligibility windows briefly overlap can never work
// the same session concurrently. Permits are transient: not persisted, reset
// on process restart.
package guard

import "sync"

// Registry hands out at most one permit per session ID.
type Registry struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{held: make(map[string]struct{})}
}

// TryAcquire takes the permit for a session. Returns false if another
// operation already holds it; callers skip the session silently.
func (r *Registry) TryAcquire(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.held[sessionID]; taken {
		return false
	}
	r.held[sessionID] = struct{}{}
	return true
}

// Release returns the permit. Safe to call for a permit not held.
func (r *Registry) Release(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.held, sessionID)
}

// Held reports whether a permit is currently taken.
func (r *Registry) Held(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, taken := r.held[sessionID]
	return taken
}

// Len returns the number of in-flight sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.held)
}
