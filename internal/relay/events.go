package relay

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/relaykit/relay/internal/models"
)

// Client → server event types.
const (
	EventJoinRoom    = "join_room"
	EventSendMessage = "send_message"
	EventLeaveRoom   = "leave_room"
)

// Server → client event types.
const (
	EventLoadMessages   = "load_messages"
	EventReceiveMessage = "receive_message"
	EventUserJoined     = "user_joined"
	EventUserLeft       = "user_left"
	EventError          = "error"
)

var (
	// ErrUnknownEvent is returned for frames with an unrecognized type tag.
	ErrUnknownEvent = errors.New("unknown event type")
	// ErrBadPayload is returned for frames that fail schema validation.
	ErrBadPayload = errors.New("invalid event payload")
)

// MemberInfo is one entry of a room's online-users list, in join order.
type MemberInfo struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// ClientEvent is a validated inbound frame. Identity fields sent by the
// client are ignored; the authenticated session is authoritative.
type ClientEvent struct {
	Type   string
	RoomID string
	Text   string
}

// clientFrame is the superset wire shape of all client events.
type clientFrame struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
	Text   string `json:"text"`
}

// DecodeClientEvent parses and validates a raw frame at the boundary,
// before it reaches the session controller.
func DecodeClientEvent(raw []byte, maxText int) (ClientEvent, error) {
	var frame clientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return ClientEvent{}, ErrBadPayload
	}

	switch frame.Type {
	case EventJoinRoom, EventLeaveRoom:
		if _, err := uuid.Parse(frame.RoomID); err != nil {
			return ClientEvent{}, ErrBadPayload
		}
		return ClientEvent{Type: frame.Type, RoomID: frame.RoomID}, nil

	case EventSendMessage:
		if _, err := uuid.Parse(frame.RoomID); err != nil {
			return ClientEvent{}, ErrBadPayload
		}
		if frame.Text == "" || (maxText > 0 && len(frame.Text) > maxText) {
			return ClientEvent{}, ErrBadPayload
		}
		return ClientEvent{Type: frame.Type, RoomID: frame.RoomID, Text: frame.Text}, nil

	case "":
		return ClientEvent{}, ErrBadPayload

	default:
		return ClientEvent{}, ErrUnknownEvent
	}
}

// loadMessagesEvent delivers room history privately to a joining connection.
type loadMessagesEvent struct {
	Type     string           `json:"type"`
	RoomID   string           `json:"room_id"`
	Messages []models.Message `json:"messages"`
}

// messageEvent fans a persisted message out to a room.
type messageEvent struct {
	Type string `json:"type"`
	models.Message
}

// presenceEvent announces a membership change with the full updated list.
type presenceEvent struct {
	Type     string       `json:"type"`
	RoomID   string       `json:"room_id"`
	UserID   string       `json:"user_id"`
	Username string       `json:"username"`
	Users    []MemberInfo `json:"users"`
}

// errorEvent is sent privately when a client frame is rejected or a
// message could not be persisted.
type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newPresenceEvent(eventType, roomID string, userID uuid.UUID, username string, members []Member) presenceEvent {
	users := make([]MemberInfo, len(members))
	for i, m := range members {
		users[i] = MemberInfo{UserID: m.UserID.String(), Username: m.Username}
	}
	return presenceEvent{
		Type:     eventType,
		RoomID:   roomID,
		UserID:   userID.String(),
		Username: username,
		Users:    users,
	}
}
