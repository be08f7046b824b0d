package session

import "sync"

// Registry owns the set of live sessions. All methods are safe for
// concurrent use.
//
// Location membership is derived solely from each session's location field;
// there is no secondary location index. Location-scoped reads are a filtered
// scan of the primary map, which is fine at the population sizes this relay
// serves and is the documented scalability ceiling.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session // id → session
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Insert registers a session under its id.
//
// Precondition: sess must be non-nil with a non-empty id. Generated ids are
// assumed collision-free; inserting an existing id replaces it.
func (r *Registry) Insert(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sess.ID] = sess
}

// Remove deletes the session with the given id and reports whether it was
// present. Removing an absent id is a harmless no-op, so cleanup paths may
// race without double-announcing a departure.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	return ok
}

// Get returns the session for the given id.
//
// Postcondition: Returns (session, true) if found, or (nil, false) otherwise.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

// ActiveInLocation returns a snapshot of all active (joined) sessions whose
// location equals the argument, excluding excludeID. Pass "" to exclude
// nobody. Order is unspecified.
func (r *Registry) ActiveInLocation(location, excludeID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Session
	for id, sess := range r.sessions {
		if id == excludeID {
			continue
		}
		if !sess.Active() || sess.Location() != location {
			continue
		}
		out = append(out, sess)
	}
	return out
}

// All returns a snapshot of every session, joined or not. The reaper and
// stats reporter iterate this snapshot so that removals mid-sweep are safe.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess)
	}
	return out
}

// Len returns the total number of sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
