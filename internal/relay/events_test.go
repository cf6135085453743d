package relay

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestDecodeClientEvent(t *testing.T) {
	roomID := uuid.NewString()

	tests := []struct {
		name    string
		raw     string
		wantErr error
		want    ClientEvent
	}{
		{
			name: "join",
			raw:  `{"type":"join_room","room_id":"` + roomID + `"}`,
			want: ClientEvent{Type: EventJoinRoom, RoomID: roomID},
		},
		{
			name: "leave",
			raw:  `{"type":"leave_room","room_id":"` + roomID + `"}`,
			want: ClientEvent{Type: EventLeaveRoom, RoomID: roomID},
		},
		{
			name: "send",
			raw:  `{"type":"send_message","room_id":"` + roomID + `","text":"hi"}`,
			want: ClientEvent{Type: EventSendMessage, RoomID: roomID, Text: "hi"},
		},
		{
			name:    "not json",
			raw:     `{{{`,
			wantErr: ErrBadPayload,
		},
		{
			name:    "missing type",
			raw:     `{"room_id":"` + roomID + `"}`,
			wantErr: ErrBadPayload,
		},
		{
			name:    "unknown type",
			raw:     `{"type":"teleport","room_id":"` + roomID + `"}`,
			wantErr: ErrUnknownEvent,
		},
		{
			name:    "join with bad room id",
			raw:     `{"type":"join_room","room_id":"lobby"}`,
			wantErr: ErrBadPayload,
		},
		{
			name:    "send with empty text",
			raw:     `{"type":"send_message","room_id":"` + roomID + `","text":""}`,
			wantErr: ErrBadPayload,
		},
		{
			name:    "send with oversized text",
			raw:     `{"type":"send_message","room_id":"` + roomID + `","text":"` + strings.Repeat("a", 5000) + `"}`,
			wantErr: ErrBadPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeClientEvent([]byte(tt.raw), 4096)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DecodeClientEvent() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeClientEvent() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeClientEvent() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeClientEventIgnoresIdentityFields(t *testing.T) {
	roomID := uuid.NewString()
	raw := `{"type":"send_message","room_id":"` + roomID + `","text":"hi","user_id":"spoofed","username":"admin"}`

	got, err := DecodeClientEvent([]byte(raw), 4096)
	if err != nil {
		t.Fatalf("DecodeClientEvent() error = %v", err)
	}
	if got.Type != EventSendMessage || got.Text != "hi" {
		t.Errorf("DecodeClientEvent() = %+v", got)
	}
}
