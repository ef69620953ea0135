package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"trivia-room-service/internal/domain"
)

func newTestStore(t *testing.T) (*RoomStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRoomStore(client, time.Hour), mr
}

func sampleRoom(code string) *domain.Room {
	return &domain.Room{
		Code:      code,
		CreatorID: "u1",
		Players:   []domain.Player{{ID: "u1", Name: "Alice"}},
		Scores:    []domain.Score{{PlayerID: "u1"}},
		Status:    domain.StatusWaiting,
	}
}

func TestRoomStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	if err := store.Create(ctx, sampleRoom("111111")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !mr.Exists("room:111111") {
		t.Fatalf("expected redis key to be set")
	}
	if err := store.Create(ctx, sampleRoom("111111")); !errors.Is(err, domain.ErrRoomExists) {
		t.Fatalf("expected ErrRoomExists, got %v", err)
	}

	room, version, err := store.Get(ctx, "111111")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if version != 1 || room.CreatorID != "u1" {
		t.Fatalf("unexpected snapshot v%d %+v", version, room)
	}

	if _, _, err := store.Get(ctx, "999999"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestRoomStoreStaleVersionLoses(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	_ = store.Create(ctx, sampleRoom("222222"))

	room, version, _ := store.Get(ctx, "222222")
	room.Players = append(room.Players, domain.Player{ID: "u2", Name: "Bob"})
	room.Scores = append(room.Scores, domain.Score{PlayerID: "u2"})

	if err := store.Update(ctx, room, version); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.Update(ctx, room, version); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict on stale version, got %v", err)
	}

	fresh, newVersion, _ := store.Get(ctx, "222222")
	if newVersion != 2 || len(fresh.Players) != 2 {
		t.Fatalf("committed write lost: v%d players=%d", newVersion, len(fresh.Players))
	}
}

func TestRoomStoreStaleDeleteLoses(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)
	_ = store.Create(ctx, sampleRoom("666666"))

	room, version, _ := store.Get(ctx, "666666")
	room.Players = append(room.Players, domain.Player{ID: "u2", Name: "Bob"})
	room.Scores = append(room.Scores, domain.Score{PlayerID: "u2"})
	if err := store.Update(ctx, room, version); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := store.Delete(ctx, "666666", version); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict on stale delete, got %v", err)
	}
	if !mr.Exists("room:666666") {
		t.Fatalf("committed write lost to stale delete")
	}
	if err := store.Delete(ctx, "666666", version+1); err != nil {
		t.Fatalf("delete at read version: %v", err)
	}
	if _, _, err := store.Get(ctx, "666666"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected room gone, got %v", err)
	}
}

func TestRoomStoreFinishedRoomExpires(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)
	_ = store.Create(ctx, sampleRoom("333333"))

	room, version, _ := store.Get(ctx, "333333")
	room.Status = domain.StatusFinished
	if err := store.Update(ctx, room, version); err != nil {
		t.Fatalf("update: %v", err)
	}

	mr.FastForward(2 * time.Hour)
	if _, _, err := store.Get(ctx, "333333"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected finished room to expire, got %v", err)
	}
}

func TestRoomStoreList(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	_ = store.Create(ctx, sampleRoom("444444"))
	_ = store.Create(ctx, sampleRoom("555555"))

	rooms, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(rooms))
	}
}
