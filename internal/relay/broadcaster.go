package relay

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/relaykit/relay/internal/metrics"
)

// Sink is the delivery end of one connection. Enqueue must not block; it
// returns false when the payload could not be accepted (closed connection
// or full buffer). Close tears the underlying connection down.
type Sink interface {
	Enqueue(payload []byte) bool
	Close()
}

// Broadcaster fans events out to every connection currently joined to a
// room, resolving membership from the presence table at broadcast time.
type Broadcaster struct {
	presence *PresenceTable
	logger   zerolog.Logger

	mu    sync.RWMutex
	sinks map[uuid.UUID]Sink

	// fanMu serializes fan-outs so all members of a room observe events in
	// the same order.
	fanMu sync.Mutex
}

// NewBroadcaster creates a broadcaster over the given presence table.
func NewBroadcaster(presence *PresenceTable, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		presence: presence,
		logger:   logger.With().Str("component", "broadcaster").Logger(),
		sinks:    make(map[uuid.UUID]Sink),
	}
}

// Attach binds a connection's sink so it can receive events.
func (b *Broadcaster) Attach(connID uuid.UUID, sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks[connID] = sink
}

// Detach unbinds a connection's sink. Idempotent.
func (b *Broadcaster) Detach(connID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sinks, connID)
}

// Broadcast delivers an event to all current members of a room, including
// the originator. A room with no members is a silent no-op.
func (b *Broadcaster) Broadcast(roomID string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error().Err(err).Str("room_id", roomID).Msg("failed to marshal event")
		return
	}

	b.fanMu.Lock()
	defer b.fanMu.Unlock()

	members := b.presence.MembersOf(roomID)
	if len(members) == 0 {
		return
	}

	for _, m := range members {
		if !b.send(m.ConnID, payload) {
			metrics.EventsDropped.WithLabelValues("slow_consumer").Inc()
			b.logger.Warn().
				Str("room_id", roomID).
				Str("conn_id", m.ConnID.String()).
				Msg("dropping event for slow consumer")
		}
	}
	metrics.EventsBroadcast.Inc()
}

// SendTo delivers an event privately to exactly one connection.
func (b *Broadcaster) SendTo(connID uuid.UUID, event any) bool {
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error().Err(err).Str("conn_id", connID.String()).Msg("failed to marshal event")
		return false
	}

	b.fanMu.Lock()
	defer b.fanMu.Unlock()
	return b.send(connID, payload)
}

// Shutdown closes every attached sink. Used during graceful server stop.
func (b *Broadcaster) Shutdown() {
	b.mu.Lock()
	sinks := make([]Sink, 0, len(b.sinks))
	for _, s := range b.sinks {
		sinks = append(sinks, s)
	}
	b.mu.Unlock()

	for _, s := range sinks {
		s.Close()
	}
	b.logger.Info().Int("connections", len(sinks)).Msg("closed all client connections")
}

func (b *Broadcaster) send(connID uuid.UUID, payload []byte) bool {
	b.mu.RLock()
	sink, ok := b.sinks[connID]
	b.mu.RUnlock()

	if !ok {
		return false
	}
	return sink.Enqueue(payload)
}
