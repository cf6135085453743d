package store

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/relaykit/relay/internal/models"
)

// memoryLogCap bounds how many messages are retained per room.
const memoryLogCap = 500

// MemoryLog is an in-memory MessageLog used in tests and in deployments
// without Redis. Messages are kept per room in append order, capped at
// memoryLogCap.
type MemoryLog struct {
	mu    sync.Mutex
	rooms map[string][]models.Message
}

// NewMemoryLog creates an empty in-memory message log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{rooms: make(map[string][]models.Message)}
}

// Append stores a message, assigning its ULID and timestamp if unset.
func (s *MemoryLog) Append(_ context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log := append(s.rooms[msg.RoomID], *msg)
	if len(log) > memoryLogCap {
		log = log[len(log)-memoryLogCap:]
	}
	s.rooms[msg.RoomID] = log

	return nil
}

// Recent returns up to limit of the newest messages for a room, oldest-first.
func (s *MemoryLog) Recent(_ context.Context, roomID string, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.rooms[roomID]
	if limit > 0 && len(log) > limit {
		log = log[len(log)-limit:]
	}

	out := make([]models.Message, len(log))
	copy(out, log)
	return out, nil
}

// Close is a no-op for the in-memory log.
func (s *MemoryLog) Close() error { return nil }

// Ping is a no-op for the in-memory log.
func (s *MemoryLog) Ping(context.Context) error { return nil }
