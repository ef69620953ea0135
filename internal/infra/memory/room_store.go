package memory

import (
	"context"
	"sync"

	"trivia-room-service/internal/domain"
)

// RoomStore is the in-memory implementation of app.RoomStore. Versions are
// process-local; snapshots are cloned both ways so optimistic writes check
// against exactly what was read.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*versionedRoom
}

type versionedRoom struct {
	room    *domain.Room
	version int64
}

func NewRoomStore() *RoomStore {
	return &RoomStore{rooms: make(map[string]*versionedRoom)}
}

func (s *RoomStore) Get(_ context.Context, code string) (*domain.Room, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.rooms[code]
	if !ok {
		return nil, 0, domain.ErrRoomNotFound
	}
	return entry.room.Clone(), entry.version, nil
}

func (s *RoomStore) Create(_ context.Context, room *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rooms[room.Code]; exists {
		return domain.ErrRoomExists
	}
	s.rooms[room.Code] = &versionedRoom{room: room.Clone(), version: 1}
	return nil
}

func (s *RoomStore) Update(_ context.Context, room *domain.Room, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.rooms[room.Code]
	if !ok {
		return domain.ErrRoomNotFound
	}
	if entry.version != version {
		return domain.ErrVersionConflict
	}
	entry.room = room.Clone()
	entry.version++
	return nil
}

func (s *RoomStore) Delete(_ context.Context, code string, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.rooms[code]
	if !ok {
		return domain.ErrRoomNotFound
	}
	if entry.version != version {
		return domain.ErrVersionConflict
	}
	delete(s.rooms, code)
	return nil
}

func (s *RoomStore) List(_ context.Context) ([]domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Room, 0, len(s.rooms))
	for _, entry := range s.rooms {
		out = append(out, *entry.room.Clone())
	}
	return out, nil
}
