package relay

import (
	"testing"

	"github.com/google/uuid"
)

func register(t *testing.T, p *PresenceTable, username string) uuid.UUID {
	t.Helper()
	connID := uuid.New()
	if !p.Register(connID, uuid.New(), username) {
		t.Fatalf("Register(%s) returned false", username)
	}
	return connID
}

func TestPresenceRegisterDuplicate(t *testing.T) {
	p := NewPresenceTable(false)
	connID := uuid.New()

	if !p.Register(connID, uuid.New(), "alice") {
		t.Fatal("first Register returned false")
	}
	if p.Register(connID, uuid.New(), "alice") {
		t.Error("second Register with same conn ID should return false")
	}
}

func TestPresenceJoinOrder(t *testing.T) {
	p := NewPresenceTable(false)
	roomID := uuid.NewString()

	a := register(t, p, "alice")
	b := register(t, p, "bob")
	c := register(t, p, "carol")

	for _, connID := range []uuid.UUID{a, b, c} {
		if _, _, err := p.Join(connID, roomID); err != nil {
			t.Fatalf("Join() error = %v", err)
		}
	}

	members := p.MembersOf(roomID)
	want := []string{"alice", "bob", "carol"}
	if len(members) != len(want) {
		t.Fatalf("got %d members, want %d", len(members), len(want))
	}
	for i, m := range members {
		if m.Username != want[i] {
			t.Errorf("members[%d] = %s, want %s", i, m.Username, want[i])
		}
	}
}

func TestPresenceRejoinSameRoomIsNoOp(t *testing.T) {
	p := NewPresenceTable(false)
	roomID := uuid.NewString()
	a := register(t, p, "alice")
	b := register(t, p, "bob")

	p.Join(a, roomID)
	p.Join(b, roomID)

	members, left, err := p.Join(a, roomID)
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if left != nil {
		t.Error("rejoining the same room should not report a departure")
	}
	if len(members) != 2 {
		t.Errorf("got %d members, want 2", len(members))
	}
	if members[0].Username != "alice" {
		t.Errorf("rejoin changed member order: first member is %s", members[0].Username)
	}
}

func TestPresenceSingleRoomPolicy(t *testing.T) {
	p := NewPresenceTable(false)
	roomA := uuid.NewString()
	roomB := uuid.NewString()
	connID := register(t, p, "alice")

	p.Join(connID, roomA)
	_, left, err := p.Join(connID, roomB)
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	if left == nil {
		t.Fatal("joining a second room should report leaving the first")
	}
	if left.RoomID != roomA {
		t.Errorf("left.RoomID = %s, want %s", left.RoomID, roomA)
	}
	if len(p.MembersOf(roomA)) != 0 {
		t.Error("connection still listed in the first room")
	}
	if len(p.MembersOf(roomB)) != 1 {
		t.Error("connection not listed in the second room")
	}
}

func TestPresenceMultiRoomPolicy(t *testing.T) {
	p := NewPresenceTable(true)
	roomA := uuid.NewString()
	roomB := uuid.NewString()
	connID := register(t, p, "alice")

	p.Join(connID, roomA)
	_, left, err := p.Join(connID, roomB)
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	if left != nil {
		t.Error("multi-room policy should not report a departure on second join")
	}
	if len(p.MembersOf(roomA)) != 1 || len(p.MembersOf(roomB)) != 1 {
		t.Error("connection should be a member of both rooms")
	}

	// Rejoining a room must never duplicate the membership entry.
	p.Join(connID, roomA)
	if got := len(p.MembersOf(roomA)); got != 1 {
		t.Errorf("room A has %d entries after rejoin, want 1", got)
	}
}

func TestPresenceLeave(t *testing.T) {
	p := NewPresenceTable(false)
	roomID := uuid.NewString()
	a := register(t, p, "alice")
	b := register(t, p, "bob")

	p.Join(a, roomID)
	p.Join(b, roomID)

	dep := p.Leave(a, roomID)
	if dep == nil {
		t.Fatal("Leave() returned nil for a member")
	}
	if len(dep.Remaining) != 1 || dep.Remaining[0].Username != "bob" {
		t.Errorf("unexpected remaining members: %+v", dep.Remaining)
	}

	if dep := p.Leave(a, roomID); dep != nil {
		t.Error("leaving a room twice should be a no-op")
	}
	if dep := p.Leave(uuid.New(), roomID); dep != nil {
		t.Error("unknown connection leaving should be a no-op")
	}
}

func TestPresenceRemovePurgesAllRooms(t *testing.T) {
	p := NewPresenceTable(true)
	roomA := uuid.NewString()
	roomB := uuid.NewString()
	connID := register(t, p, "alice")

	p.Join(connID, roomA)
	p.Join(connID, roomB)

	deps := p.Remove(connID)
	if len(deps) != 2 {
		t.Fatalf("Remove() reported %d departures, want 2", len(deps))
	}
	if p.SessionCount() != 0 {
		t.Error("session still registered after Remove")
	}
	if p.RoomCount() != 0 {
		t.Error("empty rooms should be dropped from the table")
	}

	if deps := p.Remove(connID); deps != nil {
		t.Error("removing an unknown connection should report no departures")
	}
}

func TestPresenceInRoom(t *testing.T) {
	p := NewPresenceTable(false)
	roomID := uuid.NewString()
	connID := register(t, p, "alice")

	if p.InRoom(connID, roomID) {
		t.Error("InRoom() true before join")
	}
	p.Join(connID, roomID)
	if !p.InRoom(connID, roomID) {
		t.Error("InRoom() false after join")
	}
	p.Leave(connID, roomID)
	if p.InRoom(connID, roomID) {
		t.Error("InRoom() true after leave")
	}
}

func TestPresenceJoinUnregistered(t *testing.T) {
	p := NewPresenceTable(false)
	if _, _, err := p.Join(uuid.New(), uuid.NewString()); err != ErrNotRegistered {
		t.Errorf("Join() error = %v, want ErrNotRegistered", err)
	}
}
