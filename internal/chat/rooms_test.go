package chat

import (
	"sync"
	"testing"

	"github.com/orderdesk/orderdesk/internal/auth"
)

func TestRoomNames(t *testing.T) {
	if got := UserRoom(42); got != "user:42" {
		t.Fatalf("expected user:42, got %q", got)
	}
	if got := OrderRoom(123456789); got != "order:123456789" {
		t.Fatalf("expected order:123456789, got %q", got)
	}
}

func TestJoinLeaveIdempotent(t *testing.T) {
	ri := NewRoomIndex()
	s := newSession(auth.Identity{UserID: 1}, discardOutbound{})

	ri.Join("order:1", s)
	ri.Join("order:1", s)
	if got := len(ri.MembersOf("order:1")); got != 1 {
		t.Fatalf("expected 1 member, got %d", got)
	}

	ri.Leave("order:1", s)
	ri.Leave("order:1", s)
	if got := len(ri.MembersOf("order:1")); got != 0 {
		t.Fatalf("expected 0 members, got %d", got)
	}
}

func TestEmptyRoomGarbageCollected(t *testing.T) {
	ri := NewRoomIndex()
	s := newSession(auth.Identity{UserID: 1}, discardOutbound{})

	ri.Join("order:1", s)
	if ri.Rooms() != 1 {
		t.Fatalf("expected 1 room, got %d", ri.Rooms())
	}

	ri.Leave("order:1", s)
	if ri.Rooms() != 0 {
		t.Fatalf("expected 0 rooms after last leave, got %d", ri.Rooms())
	}
}

func TestLeaveUnknownRoom(t *testing.T) {
	ri := NewRoomIndex()
	s := newSession(auth.Identity{UserID: 1}, discardOutbound{})

	// Must not panic or create state
	ri.Leave("order:999", s)
	if ri.Rooms() != 0 {
		t.Fatalf("expected 0 rooms, got %d", ri.Rooms())
	}
}

func TestMembersSnapshotIsolated(t *testing.T) {
	ri := NewRoomIndex()
	a := newSession(auth.Identity{UserID: 1}, discardOutbound{})
	b := newSession(auth.Identity{UserID: 2}, discardOutbound{})

	ri.Join("order:1", a)
	snapshot := ri.MembersOf("order:1")

	ri.Join("order:1", b)
	if len(snapshot) != 1 {
		t.Fatalf("snapshot should not grow, got %d", len(snapshot))
	}
}

func TestConcurrentMembership(t *testing.T) {
	ri := NewRoomIndex()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := newSession(auth.Identity{UserID: 1}, discardOutbound{})
			ri.Join("order:1", s)
			ri.MembersOf("order:1")
			ri.Leave("order:1", s)
		}()
	}
	wg.Wait()

	if ri.Rooms() != 0 {
		t.Fatalf("expected all rooms collected, got %d", ri.Rooms())
	}
}
