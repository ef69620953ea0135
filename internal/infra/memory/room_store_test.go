package memory

import (
	"context"
	"errors"
	"testing"

	"trivia-room-service/internal/domain"
)

func sampleRoom(code string) *domain.Room {
	return &domain.Room{
		Code:      code,
		CreatorID: "u1",
		Players:   []domain.Player{{ID: "u1", Name: "Alice"}},
		Scores:    []domain.Score{{PlayerID: "u1"}},
		Status:    domain.StatusWaiting,
	}
}

func TestRoomStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewRoomStore()

	if err := store.Create(ctx, sampleRoom("111111")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, sampleRoom("111111")); !errors.Is(err, domain.ErrRoomExists) {
		t.Fatalf("expected ErrRoomExists, got %v", err)
	}

	room, version, err := store.Get(ctx, "111111")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if version != 1 || room.Code != "111111" {
		t.Fatalf("unexpected snapshot v%d %+v", version, room)
	}

	if err := store.Delete(ctx, "111111", version); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := store.Get(ctx, "111111"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "111111", version); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound on double delete, got %v", err)
	}
}

func TestRoomStoreStaleDeleteLoses(t *testing.T) {
	ctx := context.Background()
	store := NewRoomStore()
	_ = store.Create(ctx, sampleRoom("444444"))

	room, version, _ := store.Get(ctx, "444444")
	room.Players = append(room.Players, domain.Player{ID: "u2", Name: "Bob"})
	room.Scores = append(room.Scores, domain.Score{PlayerID: "u2"})
	if err := store.Update(ctx, room, version); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := store.Delete(ctx, "444444", version); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict on stale delete, got %v", err)
	}
	fresh, _, err := store.Get(ctx, "444444")
	if err != nil || len(fresh.Players) != 2 {
		t.Fatalf("committed write lost to stale delete: %v %+v", err, fresh)
	}
}

func TestRoomStoreConditionalWrite(t *testing.T) {
	ctx := context.Background()
	store := NewRoomStore()
	_ = store.Create(ctx, sampleRoom("222222"))

	room, version, _ := store.Get(ctx, "222222")
	room.Players = append(room.Players, domain.Player{ID: "u2", Name: "Bob"})
	room.Scores = append(room.Scores, domain.Score{PlayerID: "u2"})

	if err := store.Update(ctx, room, version); err != nil {
		t.Fatalf("update: %v", err)
	}
	// The stale version must now lose.
	if err := store.Update(ctx, room, version); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	fresh, newVersion, _ := store.Get(ctx, "222222")
	if newVersion != 2 || len(fresh.Players) != 2 {
		t.Fatalf("committed write lost: v%d players=%d", newVersion, len(fresh.Players))
	}
}

func TestRoomStoreSnapshotsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewRoomStore()
	_ = store.Create(ctx, sampleRoom("333333"))

	room, _, _ := store.Get(ctx, "333333")
	room.Players[0].Name = "Mallory"

	again, _, _ := store.Get(ctx, "333333")
	if again.Players[0].Name != "Alice" {
		t.Fatalf("mutating a snapshot leaked into the store")
	}
}
