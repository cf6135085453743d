package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/relaykit/relay/internal/models"
)

func TestMemoryLogAppendAssignsIDAndTimestamp(t *testing.T) {
	log := NewMemoryLog()
	msg := &models.Message{RoomID: uuid.NewString(), UserID: uuid.NewString(), Username: "alice", Text: "hi"}

	if err := log.Append(context.Background(), msg); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if msg.ID == "" {
		t.Error("Append() did not assign an ID")
	}
	if msg.Timestamp == 0 {
		t.Error("Append() did not assign a timestamp")
	}
}

func TestMemoryLogRecentOrderAndLimit(t *testing.T) {
	log := NewMemoryLog()
	roomID := uuid.NewString()

	for i := 0; i < 10; i++ {
		err := log.Append(context.Background(), &models.Message{
			RoomID: roomID, Username: "alice", Text: fmt.Sprintf("msg-%d", i),
		})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	msgs, err := log.Recent(context.Background(), roomID, 4)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("Recent() returned %d messages, want 4", len(msgs))
	}
	if msgs[0].Text != "msg-6" || msgs[3].Text != "msg-9" {
		t.Errorf("Recent() window = [%s .. %s], want [msg-6 .. msg-9]", msgs[0].Text, msgs[3].Text)
	}
}

func TestMemoryLogRoomsAreIsolated(t *testing.T) {
	log := NewMemoryLog()
	roomA := uuid.NewString()
	roomB := uuid.NewString()

	log.Append(context.Background(), &models.Message{RoomID: roomA, Username: "alice", Text: "in A"})

	msgs, err := log.Recent(context.Background(), roomB, 50)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("room B has %d messages, want 0", len(msgs))
	}
}

func TestMemoryLogCap(t *testing.T) {
	log := NewMemoryLog()
	roomID := uuid.NewString()

	for i := 0; i < memoryLogCap+25; i++ {
		log.Append(context.Background(), &models.Message{
			RoomID: roomID, Username: "alice", Text: fmt.Sprintf("msg-%d", i),
		})
	}

	msgs, err := log.Recent(context.Background(), roomID, 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(msgs) != memoryLogCap {
		t.Fatalf("retained %d messages, want %d", len(msgs), memoryLogCap)
	}
	if msgs[0].Text != "msg-25" {
		t.Errorf("oldest retained message = %s, want msg-25", msgs[0].Text)
	}
}
