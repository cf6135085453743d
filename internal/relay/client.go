package relay

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/relaykit/relay/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 54 * time.Second
	sendBufferSize = 256
)

// ClientConfig tunes one WebSocket connection.
type ClientConfig struct {
	MaxFrameSize  int64
	MessageBurst  int
	MessageRefill time.Duration
}

// Client owns one WebSocket connection: the read pump feeding frames to
// the session controller and the write pump draining the send buffer. It
// implements Sink.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	connID   uuid.UUID
	ctrl     *Controller
	logger   zerolog.Logger
	throttle *tokenBucket

	closeOnce sync.Once
	closed    chan struct{}
}

// NewClient wraps an upgraded connection. The caller is expected to have
// authenticated and admitted the connection (Controller.Connect) before
// calling Start.
func NewClient(conn *websocket.Conn, connID uuid.UUID, ctrl *Controller, logger zerolog.Logger, cfg ClientConfig) *Client {
	if cfg.MaxFrameSize > 0 {
		conn.SetReadLimit(cfg.MaxFrameSize)
	}
	return &Client{
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		connID:   connID,
		ctrl:     ctrl,
		logger:   logger.With().Str("conn_id", connID.String()).Logger(),
		throttle: newTokenBucket(cfg.MessageBurst, cfg.MessageRefill),
		closed:   make(chan struct{}),
	}
}

// ConnID returns the connection's identifier.
func (c *Client) ConnID() uuid.UUID {
	return c.connID
}

// Enqueue hands a payload to the write pump without blocking. A full
// buffer means the consumer cannot keep up; the connection is torn down
// and false is returned.
func (c *Client) Enqueue(payload []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.send <- payload:
		return true
	default:
		c.Close()
		return false
	}
}

// Close tears the connection down. Idempotent; the read pump observes the
// closed socket and runs disconnect handling.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

// Start launches the read and write pumps. It returns immediately; the
// pumps run until the connection closes.
func (c *Client) Start() {
	done := c.ctrl.track()
	go func() {
		defer done()
		c.writePump()
	}()

	done = c.ctrl.track()
	go func() {
		defer done()
		c.readPump()
	}()
}

func (c *Client) readPump() {
	defer func() {
		c.ctrl.Disconnect(c.connID)
		c.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("unexpected websocket error")
			}
			return
		}

		if !c.throttle.allow() {
			metrics.MessagesDropped.WithLabelValues("throttled").Inc()
			c.logger.Warn().Msg("message rate limit exceeded, discarding frame")
			continue
		}

		c.ctrl.HandleFrame(context.Background(), c.connID, raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closed:
			return
		}
	}
}
