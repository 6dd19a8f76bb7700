package chat

import (
	"sync"

	"github.com/google/uuid"

	"github.com/orderdesk/orderdesk/internal/auth"
)

// Outbound is the send side of one live connection. TrySend must not block:
// it reports false when the connection cannot accept the event (closed or
// backlogged), in which case the delivery is dropped for that recipient.
type Outbound interface {
	TrySend(env Envelope) bool
}

// Session binds a verified identity to one live connection and tracks the
// rooms it has joined. Sessions only exist for authenticated connections,
// and the identity never changes for the session's lifetime.
type Session struct {
	ID       uuid.UUID
	Identity auth.Identity

	out Outbound

	mu    sync.Mutex
	rooms map[string]struct{}
}

func newSession(identity auth.Identity, out Outbound) *Session {
	return &Session{
		ID:       uuid.New(),
		Identity: identity,
		out:      out,
		rooms:    make(map[string]struct{}),
	}
}

// trackJoin records room membership on the session side. Returns false if
// the room was already joined.
func (s *Session) trackJoin(room string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room]; ok {
		return false
	}
	s.rooms[room] = struct{}{}
	return true
}

// trackLeave removes room membership on the session side. Returns false if
// the room was not joined.
func (s *Session) trackLeave(room string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room]; !ok {
		return false
	}
	delete(s.rooms, room)
	return true
}

// Rooms returns a snapshot of the rooms this session belongs to.
func (s *Session) Rooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := make([]string, 0, len(s.rooms))
	for room := range s.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// Registry maps live connection ids to their sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uuid.UUID]*Session)}
}

func (r *Registry) add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

// remove deletes a session and reports whether it was present, making
// disconnect idempotent.
func (r *Registry) remove(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Get returns the session for a connection id, or nil.
func (r *Registry) Get(id uuid.UUID) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
