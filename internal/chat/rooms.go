package chat

import (
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// UserRoom returns the personal support channel identifier for a user.
func UserRoom(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}

// OrderRoom returns the discussion thread identifier for an order.
func OrderRoom(orderID int64) string {
	return "order:" + strconv.FormatInt(orderID, 10)
}

// RoomIndex maps room identifiers to the set of currently subscribed
// sessions. Rooms exist only while they have members; the entry for a room
// is removed when the last member leaves.
type RoomIndex struct {
	mu    sync.RWMutex
	rooms map[string]map[uuid.UUID]*Session
}

// NewRoomIndex creates an empty room membership index.
func NewRoomIndex() *RoomIndex {
	return &RoomIndex{rooms: make(map[string]map[uuid.UUID]*Session)}
}

// Join subscribes a session to a room. Joining an already-joined room is a
// no-op.
func (ri *RoomIndex) Join(room string, s *Session) {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	members, ok := ri.rooms[room]
	if !ok {
		members = make(map[uuid.UUID]*Session)
		ri.rooms[room] = members
	}
	members[s.ID] = s
}

// Leave unsubscribes a session from a room. Leaving a room the session is
// not in is a no-op. Empty rooms are garbage-collected.
func (ri *RoomIndex) Leave(room string, s *Session) {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	members, ok := ri.rooms[room]
	if !ok {
		return
	}
	delete(members, s.ID)
	if len(members) == 0 {
		delete(ri.rooms, room)
	}
}

// MembersOf returns a snapshot of the sessions currently subscribed to a
// room. The snapshot is safe to iterate while membership changes
// concurrently.
func (ri *RoomIndex) MembersOf(room string) []*Session {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	members := ri.rooms[room]
	snapshot := make([]*Session, 0, len(members))
	for _, s := range members {
		snapshot = append(snapshot, s)
	}
	return snapshot
}

// Contains reports whether a session is currently subscribed to a room.
func (ri *RoomIndex) Contains(room string, id uuid.UUID) bool {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	_, ok := ri.rooms[room][id]
	return ok
}

// Rooms returns the number of rooms with at least one member.
func (ri *RoomIndex) Rooms() int {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	return len(ri.rooms)
}
