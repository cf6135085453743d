package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestSQLiteSeedsGeneralRoom(t *testing.T) {
	s := newTestStore(t)

	room, err := s.GetRoom(context.Background(), uuid.MustParse(GeneralRoomID))
	if err != nil {
		t.Fatalf("GetRoom() error = %v", err)
	}
	if room == nil {
		t.Fatal("general room was not seeded")
	}
	if room.Name != "general" {
		t.Errorf("room.Name = %s, want general", room.Name)
	}
}

func TestSQLiteUserLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "alice", "hash-value")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("user.Username = %s, want alice", user.Username)
	}

	byID, err := s.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if byID == nil || byID.Username != "alice" {
		t.Errorf("GetUserByID() = %+v", byID)
	}

	byName, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername() error = %v", err)
	}
	if byName == nil || byName.ID != user.ID {
		t.Errorf("GetUserByUsername() = %+v", byName)
	}
	if byName.PasswordHash != "hash-value" {
		t.Errorf("PasswordHash = %s, want hash-value", byName.PasswordHash)
	}

	if missing, err := s.GetUserByUsername(ctx, "nobody"); err != nil || missing != nil {
		t.Errorf("GetUserByUsername(nobody) = %+v, %v; want nil, nil", missing, err)
	}

	if _, err := s.CreateUser(ctx, "alice", "other-hash"); err == nil {
		t.Error("CreateUser() with duplicate username should fail")
	}

	count, err := s.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers() error = %v", err)
	}
	if count != 1 {
		t.Errorf("CountUsers() = %d, want 1", count)
	}
}

func TestSQLiteRoomCatalog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	creator := uuid.New()
	room, err := s.CreateRoom(ctx, "dev-talk", "engineering chatter", &creator)
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}
	if room.CreatedBy == nil || *room.CreatedBy != creator {
		t.Errorf("room.CreatedBy = %v, want %v", room.CreatedBy, creator)
	}

	rooms, total, err := s.ListRooms(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListRooms() error = %v", err)
	}
	if total != 2 {
		t.Errorf("ListRooms() total = %d, want 2 (seeded general plus dev-talk)", total)
	}
	if len(rooms) != 2 {
		t.Fatalf("ListRooms() returned %d rooms, want 2", len(rooms))
	}

	if missing, err := s.GetRoom(ctx, uuid.New()); err != nil || missing != nil {
		t.Errorf("GetRoom(unknown) = %+v, %v; want nil, nil", missing, err)
	}
}

func TestSQLiteMessageCounters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	roomID := uuid.MustParse(GeneralRoomID)

	for i := 0; i < 3; i++ {
		if err := s.IncrementMessageCount(ctx, roomID); err != nil {
			t.Fatalf("IncrementMessageCount() error = %v", err)
		}
	}

	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		t.Fatalf("GetRoom() error = %v", err)
	}
	if room.MessageCount != 3 {
		t.Errorf("room.MessageCount = %d, want 3", room.MessageCount)
	}

	sum, err := s.SumMessageCount(ctx)
	if err != nil {
		t.Fatalf("SumMessageCount() error = %v", err)
	}
	if sum != 3 {
		t.Errorf("SumMessageCount() = %d, want 3", sum)
	}

	count, err := s.CountRooms(ctx)
	if err != nil {
		t.Fatalf("CountRooms() error = %v", err)
	}
	if count != 1 {
		t.Errorf("CountRooms() = %d, want 1", count)
	}

	if err := s.TouchRoomActivity(ctx, roomID); err != nil {
		t.Errorf("TouchRoomActivity() error = %v", err)
	}
}
