package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/relaykit/relay/internal/auth"
	"github.com/relaykit/relay/internal/metrics"
	"github.com/relaykit/relay/internal/models"
	"github.com/relaykit/relay/internal/store"
)

// ErrAlreadyConnected is returned when a connection ID is admitted twice.
var ErrAlreadyConnected = errors.New("connection already admitted")

// ControllerConfig tunes the session controller.
type ControllerConfig struct {
	// HistoryLimit caps the history handed to a joining connection.
	HistoryLimit int
	// MaxMessageSize caps the text of a single message in bytes.
	MaxMessageSize int
}

// Controller orchestrates the join/leave/disconnect protocol, mediating
// between the presence table, the broadcaster, and the message log.
//
// Per-connection states: Unauthenticated → Authenticated(no room) →
// InRoom, with InRoom returning to Authenticated on leave and either state
// terminating to Closed on disconnect. Authentication happens before
// Connect; the controller only ever sees authenticated connections.
type Controller struct {
	presence *PresenceTable
	caster   *Broadcaster
	log      store.MessageLog
	catalog  store.DataStore
	logger   zerolog.Logger
	cfg      ControllerConfig

	wg sync.WaitGroup
}

// NewController creates a session controller. catalog may be nil, in which
// case room activity counters are not maintained.
func NewController(presence *PresenceTable, caster *Broadcaster, log store.MessageLog, catalog store.DataStore, logger zerolog.Logger, cfg ControllerConfig) *Controller {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	return &Controller{
		presence: presence,
		caster:   caster,
		log:      log,
		catalog:  catalog,
		logger:   logger.With().Str("component", "session").Logger(),
		cfg:      cfg,
	}
}

// Connect admits an authenticated connection: it registers a session with
// no room and binds the connection's sink. No room state is touched.
func (c *Controller) Connect(connID uuid.UUID, ident auth.Identity, sink Sink) error {
	if !c.presence.Register(connID, ident.UserID, ident.Username) {
		return ErrAlreadyConnected
	}
	c.caster.Attach(connID, sink)

	metrics.ConnectionsActive.Inc()
	c.logger.Info().
		Str("conn_id", connID.String()).
		Str("user_id", ident.UserID.String()).
		Str("username", ident.Username).
		Msg("connection admitted")
	return nil
}

// Disconnect performs full teardown for a connection. The connection is
// removed from every room it was in and the remaining members are notified,
// exactly as if it had left explicitly. Idempotent relative to an explicit
// leave that may already have run.
func (c *Controller) Disconnect(connID uuid.UUID) {
	sess, known := c.presence.Lookup(connID)
	deps := c.presence.Remove(connID)
	c.caster.Detach(connID)

	if !known {
		return
	}

	for _, dep := range deps {
		c.caster.Broadcast(dep.RoomID, newPresenceEvent(EventUserLeft, dep.RoomID, sess.UserID, sess.Username, dep.Remaining))
	}

	metrics.ConnectionsActive.Dec()
	metrics.RoomsActive.Set(float64(c.presence.RoomCount()))
	c.logger.Info().
		Str("conn_id", connID.String()).
		Str("username", sess.Username).
		Msg("connection closed")
}

// HandleFrame decodes, validates, and dispatches one raw client frame.
// Rejected frames produce a private error event; they never terminate the
// session.
func (c *Controller) HandleFrame(ctx context.Context, connID uuid.UUID, raw []byte) {
	event, err := DecodeClientEvent(raw, c.cfg.MaxMessageSize)
	if err != nil {
		c.caster.SendTo(connID, errorEvent{Type: EventError, Message: err.Error()})
		return
	}

	switch event.Type {
	case EventJoinRoom:
		c.joinRoom(ctx, connID, event.RoomID)
	case EventSendMessage:
		c.sendMessage(ctx, connID, event.RoomID, event.Text)
	case EventLeaveRoom:
		c.leaveRoom(connID, event.RoomID)
	}
}

// joinRoom registers the membership, hands the room history privately to
// the caller, then announces the join to the whole room (caller included).
func (c *Controller) joinRoom(ctx context.Context, connID uuid.UUID, roomID string) {
	sess, ok := c.presence.Lookup(connID)
	if !ok {
		return
	}

	members, left, err := c.presence.Join(connID, roomID)
	if err != nil {
		return
	}

	// Under the single-room policy the previous room is notified first.
	if left != nil {
		c.caster.Broadcast(left.RoomID, newPresenceEvent(EventUserLeft, left.RoomID, sess.UserID, sess.Username, left.Remaining))
	}

	// History fetch failure degrades to an empty payload, never a dead join.
	history, err := c.log.Recent(ctx, roomID, c.cfg.HistoryLimit)
	if err != nil {
		c.logger.Warn().Err(err).Str("room_id", roomID).Msg("history fetch failed, sending empty history")
		history = nil
	}
	if history == nil {
		history = []models.Message{}
	}
	c.caster.SendTo(connID, loadMessagesEvent{Type: EventLoadMessages, RoomID: roomID, Messages: history})

	c.caster.Broadcast(roomID, newPresenceEvent(EventUserJoined, roomID, sess.UserID, sess.Username, members))

	if c.catalog != nil {
		if roomUUID, err := uuid.Parse(roomID); err == nil {
			bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			if err := c.catalog.TouchRoomActivity(bctx, roomUUID); err != nil {
				c.logger.Warn().Err(err).Str("room_id", roomID).Msg("failed to touch room activity")
			}
			cancel()
		}
	}

	metrics.RoomsActive.Set(float64(c.presence.RoomCount()))
	c.logger.Info().
		Str("conn_id", connID.String()).
		Str("username", sess.Username).
		Str("room_id", roomID).
		Msg("joined room")
}

// sendMessage persists then broadcasts. A message that cannot be persisted
// is dropped, never broadcast, and the sender is told via a private error
// event.
func (c *Controller) sendMessage(ctx context.Context, connID uuid.UUID, roomID, text string) {
	sess, ok := c.presence.Lookup(connID)
	if !ok {
		return
	}
	if !c.presence.InRoom(connID, roomID) {
		// Sending outside the room is silently ignored.
		metrics.MessagesDropped.WithLabelValues("not_in_room").Inc()
		c.logger.Debug().
			Str("conn_id", connID.String()).
			Str("room_id", roomID).
			Msg("discarding message from connection not in room")
		return
	}

	msg := &models.Message{
		RoomID:   roomID,
		UserID:   sess.UserID.String(),
		Username: sess.Username,
		Text:     text,
	}

	if err := c.log.Append(ctx, msg); err != nil {
		metrics.MessagesDropped.WithLabelValues("persistence").Inc()
		c.logger.Error().Err(err).
			Str("room_id", roomID).
			Str("username", sess.Username).
			Msg("message persistence failed, dropping")
		c.caster.SendTo(connID, errorEvent{Type: EventError, Message: "message could not be saved"})
		return
	}
	metrics.MessagesPersisted.Inc()

	if c.catalog != nil {
		if roomUUID, err := uuid.Parse(roomID); err == nil {
			// Best-effort activity bookkeeping; failures never block the fan-out.
			bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			if err := c.catalog.IncrementMessageCount(bctx, roomUUID); err != nil {
				c.logger.Warn().Err(err).Str("room_id", roomID).Msg("failed to bump room activity")
			}
			cancel()
		}
	}

	c.caster.Broadcast(roomID, messageEvent{Type: EventReceiveMessage, Message: *msg})
}

// leaveRoom removes the membership and notifies the remaining members.
// A caller not currently in that room is a no-op.
func (c *Controller) leaveRoom(connID uuid.UUID, roomID string) {
	sess, ok := c.presence.Lookup(connID)
	if !ok {
		return
	}

	dep := c.presence.Leave(connID, roomID)
	if dep == nil {
		return
	}

	c.caster.Broadcast(dep.RoomID, newPresenceEvent(EventUserLeft, dep.RoomID, sess.UserID, sess.Username, dep.Remaining))

	metrics.RoomsActive.Set(float64(c.presence.RoomCount()))
	c.logger.Info().
		Str("conn_id", connID.String()).
		Str("username", sess.Username).
		Str("room_id", roomID).
		Msg("left room")
}

// Shutdown closes all client connections and waits for their pumps to
// finish, or until the timeout is reached.
func (c *Controller) Shutdown(timeout time.Duration) error {
	c.caster.Shutdown()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info().Msg("relay shutdown completed")
		return nil
	case <-time.After(timeout):
		c.logger.Warn().Msg("relay shutdown timeout reached")
		return context.DeadlineExceeded
	}
}

// track registers a pump goroutine with the shutdown wait group.
func (c *Controller) track() func() {
	c.wg.Add(1)
	return c.wg.Done
}
