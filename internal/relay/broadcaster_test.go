package relay

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// fakeSink collects enqueued payloads for assertions.
type fakeSink struct {
	mu       sync.Mutex
	payloads [][]byte
	reject   bool
	closed   bool
}

func (s *fakeSink) Enqueue(payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject || s.closed {
		return false
	}
	s.payloads = append(s.payloads, payload)
	return true
}

func (s *fakeSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *fakeSink) events(t *testing.T) []map[string]any {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]map[string]any, len(s.payloads))
	for i, p := range s.payloads {
		var ev map[string]any
		if err := json.Unmarshal(p, &ev); err != nil {
			t.Fatalf("payload %d is not valid JSON: %v", i, err)
		}
		out[i] = ev
	}
	return out
}

func (s *fakeSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func TestBroadcastReachesAllMembersIncludingSender(t *testing.T) {
	p := NewPresenceTable(false)
	b := NewBroadcaster(p, zerolog.Nop())
	roomID := uuid.NewString()

	sinks := make(map[string]*fakeSink)
	for _, name := range []string{"alice", "bob"} {
		connID := register(t, p, name)
		sink := &fakeSink{}
		sinks[name] = sink
		b.Attach(connID, sink)
		p.Join(connID, roomID)
	}

	b.Broadcast(roomID, map[string]string{"type": "receive_message", "text": "hi"})

	for name, sink := range sinks {
		evs := sink.events(t)
		if len(evs) != 1 {
			t.Fatalf("%s received %d events, want 1", name, len(evs))
		}
		if evs[0]["text"] != "hi" {
			t.Errorf("%s received wrong payload: %v", name, evs[0])
		}
	}
}

func TestBroadcastEmptyRoomIsNoOp(t *testing.T) {
	p := NewPresenceTable(false)
	b := NewBroadcaster(p, zerolog.Nop())

	connID := register(t, p, "alice")
	sink := &fakeSink{}
	b.Attach(connID, sink)

	// alice never joined this room.
	b.Broadcast(uuid.NewString(), map[string]string{"type": "receive_message"})

	if len(sink.events(t)) != 0 {
		t.Error("connection outside the room received a broadcast")
	}
}

func TestSendToTargetsOneConnection(t *testing.T) {
	p := NewPresenceTable(false)
	b := NewBroadcaster(p, zerolog.Nop())
	roomID := uuid.NewString()

	a := register(t, p, "alice")
	aSink := &fakeSink{}
	b.Attach(a, aSink)
	p.Join(a, roomID)

	c := register(t, p, "bob")
	cSink := &fakeSink{}
	b.Attach(c, cSink)
	p.Join(c, roomID)

	if !b.SendTo(a, map[string]string{"type": "error", "message": "nope"}) {
		t.Fatal("SendTo() returned false for an attached connection")
	}

	if len(aSink.events(t)) != 1 {
		t.Error("target did not receive the private event")
	}
	if len(cSink.events(t)) != 0 {
		t.Error("private event leaked to another room member")
	}

	if b.SendTo(uuid.New(), map[string]string{"type": "error"}) {
		t.Error("SendTo() returned true for an unknown connection")
	}
}

func TestBroadcastSurvivesRejectingSink(t *testing.T) {
	p := NewPresenceTable(false)
	b := NewBroadcaster(p, zerolog.Nop())
	roomID := uuid.NewString()

	slow := register(t, p, "slow")
	b.Attach(slow, &fakeSink{reject: true})
	p.Join(slow, roomID)

	healthy := register(t, p, "healthy")
	healthySink := &fakeSink{}
	b.Attach(healthy, healthySink)
	p.Join(healthy, roomID)

	b.Broadcast(roomID, map[string]string{"type": "receive_message", "text": "hi"})

	if len(healthySink.events(t)) != 1 {
		t.Error("rejecting sink prevented delivery to a healthy member")
	}
}

func TestShutdownClosesAllSinks(t *testing.T) {
	p := NewPresenceTable(false)
	b := NewBroadcaster(p, zerolog.Nop())

	sinks := []*fakeSink{{}, {}, {}}
	for _, s := range sinks {
		b.Attach(uuid.New(), s)
	}

	b.Shutdown()

	for i, s := range sinks {
		if !s.isClosed() {
			t.Errorf("sink %d not closed after Shutdown", i)
		}
	}
}
