package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/relaykit/relay/internal/models"
)

const messageTTL = 7 * 24 * time.Hour

// RedisLog stores room messages in Redis sorted sets, scored by timestamp.
// It also backs the HTTP rate limiter's counters.
type RedisLog struct {
	client *redis.Client
}

// NewRedisLog creates a new Redis-backed message log.
func NewRedisLog(ctx context.Context, redisURL string) (*RedisLog, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisLog{client: client}, nil
}

// Client exposes the underlying redis client for the rate limiter.
func (s *RedisLog) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection.
func (s *RedisLog) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisLog) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// roomMessagesKey returns the key for a room's message sorted set.
func roomMessagesKey(roomID string) string {
	return fmt.Sprintf("room:%s:messages", roomID)
}

// Append stores a message, assigning its ULID and timestamp if unset.
func (s *RedisLog) Append(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	key := roomMessagesKey(msg.RoomID)

	err = s.client.ZAdd(ctx, key, redis.Z{
		Score:  float64(msg.Timestamp),
		Member: string(data),
	}).Err()
	if err != nil {
		return err
	}

	// Refresh TTL on the sorted set
	s.client.Expire(ctx, key, messageTTL)

	return nil
}

// Recent returns up to limit of the newest messages for a room, oldest-first.
func (s *RedisLog) Recent(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	key := roomMessagesKey(roomID)

	// Newest first, capped at limit
	results, err := s.client.ZRevRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "+inf",
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}

	// Reverse into oldest-first order while decoding
	messages := make([]models.Message, 0, len(results))
	for i := len(results) - 1; i >= 0; i-- {
		var msg models.Message
		if err := json.Unmarshal([]byte(results[i]), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}

	return messages, nil
}
