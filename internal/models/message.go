package models

// Message represents a chat message in the message log.
// Immutable once appended; the relay only holds transient copies for broadcast.
type Message struct {
	ID        string `json:"id"` // ULID
	RoomID    string `json:"room_id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp int64  `json:"ts"` // Unix ms
}
