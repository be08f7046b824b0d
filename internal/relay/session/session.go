// Package session provides the per-connection session record and the
// registry tracking live sessions partitioned by location.
package session

import (
	"sync"
	"time"
)

// Transport is the open duplex channel a session writes to. The session
// holds a reference for sends only; lifecycle belongs to the front end.
type Transport interface {
	// Send queues data for delivery. It must not block indefinitely; a
	// closed or saturated transport returns an error.
	Send(data []byte) error
	// IsOpen reports whether the transport can still deliver.
	IsOpen() bool
	// Close shuts the transport down. Safe to call more than once.
	Close() error
}

// Profile is the client-declared identity payload. The server overwrites
// "id" and "joinTime"; all other fields pass through untouched.
type Profile map[string]any

// Session tracks one connected client's state.
// Field access is guarded by a per-session mutex; the registry map has its
// own lock, so broadcast reads never hold both at once.
type Session struct {
	// ID is the server-assigned unique identifier, fixed at creation.
	ID string
	// Transport is the connection this session writes to.
	Transport Transport

	mu           sync.Mutex
	profile      Profile
	location     string
	posX, posY   float64
	lastActivity time.Time
}

// New creates a session in the given location with no profile.
//
// Precondition: id and location must be non-empty; t must be non-nil.
func New(id string, t Transport, location string, now time.Time) *Session {
	return &Session{
		ID:           id,
		Transport:    t,
		location:     location,
		lastActivity: now,
	}
}

// Active reports whether the client has joined (declared a profile).
// Only active sessions are visible to other players.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile != nil
}

// Profile returns the declared profile, or nil before join.
func (s *Session) Profile() Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// SetProfile marks the session active. The profile is not copied; callers
// must not mutate it after handing it over.
func (s *Session) SetProfile(p Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = p
}

// Location returns the current location key.
func (s *Session) Location() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.location
}

// SetLocation moves the session to a new location key.
//
// Precondition: location must be non-empty.
func (s *Session) SetLocation(location string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = location
}

// Position returns the last stored coordinates.
func (s *Session) Position() (x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.posX, s.posY
}

// SetPosition stores coordinates. Callers clamp before storing.
func (s *Session) SetPosition(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posX, s.posY = x, y
}

// LastActivity returns the time of the last successfully parsed inbound
// message.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Touch refreshes the activity timestamp.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = now
}

// Nickname returns the profile "nickname" field, or "" when absent.
func (s *Session) Nickname() string {
	return s.profileString("nickname")
}

// Username returns the profile "username" field, or "" when absent.
func (s *Session) Username() string {
	return s.profileString("username")
}

func (s *Session) profileString(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return ""
	}
	v, _ := s.profile[key].(string)
	return v
}
