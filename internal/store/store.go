package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/relaykit/relay/internal/models"
)

// GeneralRoomID is the seeded default room every deployment starts with.
const GeneralRoomID = "00000000-0000-0000-0000-000000000001"

// DataStore defines the interface for persistent storage of users and the
// room catalog. Both PostgresStore and SQLiteStore implement this interface.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CountUsers(ctx context.Context) (int64, error)

	// Room catalog operations
	CreateRoom(ctx context.Context, name, description string, createdBy *uuid.UUID) (*models.Room, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	ListRooms(ctx context.Context, limit, offset int) ([]models.Room, int, error)
	TouchRoomActivity(ctx context.Context, id uuid.UUID) error
	IncrementMessageCount(ctx context.Context, id uuid.UUID) error
	CountRooms(ctx context.Context) (int64, error)
	SumMessageCount(ctx context.Context) (int64, error)
}

// MessageLog is the append-only log of room messages. RedisLog is the
// production implementation; MemoryLog backs tests and redis-less
// deployments. Callers never branch on which is active.
type MessageLog interface {
	// Append stores a message, assigning its ID and timestamp if unset.
	Append(ctx context.Context, msg *models.Message) error
	// Recent returns up to limit of the newest messages for a room,
	// ordered oldest-first.
	Recent(ctx context.Context, roomID string, limit int) ([]models.Message, error)

	Close() error
	Ping(ctx context.Context) error
}
