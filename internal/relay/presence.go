// Package relay implements the connection/session/presence/broadcast core
// of the messaging relay: the in-memory mapping from live connections to
// (user, room) state, the join/leave/disconnect protocol, and room-scoped
// event fan-out.
package relay

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrNotRegistered is returned when an operation references a connection
// with no session.
var ErrNotRegistered = errors.New("connection not registered")

// Session binds a live connection to an authenticated identity and,
// optionally, the room it is currently in.
type Session struct {
	ConnID   uuid.UUID
	UserID   uuid.UUID
	Username string
	RoomID   string // empty when not in a room
}

// Member is one entry of a room's membership list.
type Member struct {
	ConnID   uuid.UUID
	UserID   uuid.UUID
	Username string
}

// Departure describes a room a connection was removed from, with the
// membership that remains.
type Departure struct {
	RoomID    string
	Remaining []Member
}

// PresenceTable is the authoritative concurrent-safe store of
// connection → session state and room → membership lists. Membership lists
// preserve join order. It has no ambient state; independent instances are
// fully isolated.
type PresenceTable struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	rooms    map[string][]Member

	// multiRoom preserves the legacy policy under which joining a new room
	// does not remove the connection from its previous room's membership.
	multiRoom bool
}

// NewPresenceTable creates an empty presence table. With multiRoom false
// (the default policy), joining a room implicitly leaves the previous one.
func NewPresenceTable(multiRoom bool) *PresenceTable {
	return &PresenceTable{
		sessions:  make(map[uuid.UUID]*Session),
		rooms:     make(map[string][]Member),
		multiRoom: multiRoom,
	}
}

// Register creates a session with no room for an authenticated connection.
// Returns false (no-op) if a session already exists for that connection.
func (p *PresenceTable) Register(connID, userID uuid.UUID, username string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.sessions[connID]; exists {
		return false
	}
	p.sessions[connID] = &Session{ConnID: connID, UserID: userID, Username: username}
	return true
}

// Join sets the session's room and appends the connection to that room's
// membership list. It returns the room's membership after the join and,
// under the single-room policy, the departure from the previous room (nil
// if there was none).
func (p *PresenceTable) Join(connID uuid.UUID, roomID string) (members []Member, left *Departure, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sess, ok := p.sessions[connID]
	if !ok {
		return nil, nil, ErrNotRegistered
	}

	if sess.RoomID == roomID {
		// Re-join of the current room: membership unchanged.
		return p.membersLocked(roomID), nil, nil
	}

	if !p.multiRoom && sess.RoomID != "" {
		left = p.removeFromRoomLocked(connID, sess.RoomID)
	}

	sess.RoomID = roomID

	// A connection never appears twice in one room's list, even under the
	// legacy multi-room policy.
	for _, m := range p.rooms[roomID] {
		if m.ConnID == connID {
			return p.membersLocked(roomID), left, nil
		}
	}
	p.rooms[roomID] = append(p.rooms[roomID], Member{
		ConnID:   connID,
		UserID:   sess.UserID,
		Username: sess.Username,
	})

	return p.membersLocked(roomID), left, nil
}

// Leave removes the connection from the given room's membership list and
// clears the session's room if it matches. Idempotent: a connection not in
// that room is a no-op and returns nil.
func (p *PresenceTable) Leave(connID uuid.UUID, roomID string) *Departure {
	p.mu.Lock()
	defer p.mu.Unlock()

	sess, ok := p.sessions[connID]
	if !ok {
		return nil
	}

	dep := p.removeFromRoomLocked(connID, roomID)
	if dep != nil && sess.RoomID == roomID {
		sess.RoomID = ""
	}
	return dep
}

// Remove performs full teardown: the connection is purged from every room
// it appears in and its session is deleted. Safe to call on an unknown
// connection (no-op) to tolerate duplicate disconnect signals.
func (p *PresenceTable) Remove(connID uuid.UUID) []Departure {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.sessions[connID]; !ok {
		return nil
	}
	delete(p.sessions, connID)

	var deps []Departure
	for roomID := range p.rooms {
		if dep := p.removeFromRoomLocked(connID, roomID); dep != nil {
			deps = append(deps, *dep)
		}
	}
	return deps
}

// MembersOf returns a snapshot of a room's membership in join order.
func (p *PresenceTable) MembersOf(roomID string) []Member {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.membersLocked(roomID)
}

// Lookup returns the session for a connection.
func (p *PresenceTable) Lookup(connID uuid.UUID) (Session, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	sess, ok := p.sessions[connID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// InRoom reports whether the connection is currently a member of the room.
func (p *PresenceTable) InRoom(connID uuid.UUID, roomID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, m := range p.rooms[roomID] {
		if m.ConnID == connID {
			return true
		}
	}
	return false
}

// SessionCount returns the number of live sessions.
func (p *PresenceTable) SessionCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sessions)
}

// RoomCount returns the number of rooms with at least one member.
func (p *PresenceTable) RoomCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.rooms)
}

// removeFromRoomLocked removes the connection from one room's membership
// list, dropping the list entirely when it empties. Caller holds p.mu.
func (p *PresenceTable) removeFromRoomLocked(connID uuid.UUID, roomID string) *Departure {
	members, ok := p.rooms[roomID]
	if !ok {
		return nil
	}

	for i, m := range members {
		if m.ConnID == connID {
			members = append(members[:i], members[i+1:]...)
			if len(members) == 0 {
				delete(p.rooms, roomID)
			} else {
				p.rooms[roomID] = members
			}
			return &Departure{RoomID: roomID, Remaining: p.membersLocked(roomID)}
		}
	}
	return nil
}

// membersLocked snapshots a room's membership. Caller holds p.mu.
func (p *PresenceTable) membersLocked(roomID string) []Member {
	members := p.rooms[roomID]
	out := make([]Member, len(members))
	copy(out, members)
	return out
}
