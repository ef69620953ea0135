package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"trivia-room-service/internal/domain"
)

// RoomStore keeps each room as a JSON envelope under room:{code}, with the
// version inside the envelope. Conditional writes run as WATCH/MULTI/EXEC:
// a concurrent commit fails the transaction, which surfaces as
// domain.ErrVersionConflict for the controller to retry.
type RoomStore struct {
	client      *redis.Client
	finishedTTL time.Duration
}

type envelope struct {
	Version int64       `json:"version"`
	Room    domain.Room `json:"room"`
}

// NewRoomStore builds a store; finished rooms expire after finishedTTL
// (zero keeps them forever).
func NewRoomStore(client *redis.Client, finishedTTL time.Duration) *RoomStore {
	return &RoomStore{client: client, finishedTTL: finishedTTL}
}

func (s *RoomStore) Get(ctx context.Context, code string) (*domain.Room, int64, error) {
	raw, err := s.client.Get(ctx, s.key(code)).Bytes()
	if err == redis.Nil {
		return nil, 0, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("get room: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, 0, fmt.Errorf("unmarshal room: %w", err)
	}
	return &env.Room, env.Version, nil
}

func (s *RoomStore) Create(ctx context.Context, room *domain.Room) error {
	data, err := json.Marshal(envelope{Version: 1, Room: *room})
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, s.key(room.Code), data, 0).Result()
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	if !ok {
		return domain.ErrRoomExists
	}
	return nil
}

func (s *RoomStore) Update(ctx context.Context, room *domain.Room, version int64) error {
	key := s.key(room.Code)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return domain.ErrRoomNotFound
		}
		if err != nil {
			return err
		}
		var current envelope
		if err := json.Unmarshal(raw, &current); err != nil {
			return fmt.Errorf("unmarshal room: %w", err)
		}
		if current.Version != version {
			return domain.ErrVersionConflict
		}

		data, err := json.Marshal(envelope{Version: version + 1, Room: *room})
		if err != nil {
			return err
		}
		ttl := time.Duration(0)
		if room.Status == domain.StatusFinished {
			ttl = s.finishedTTL
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return domain.ErrVersionConflict
	}
	return err
}

func (s *RoomStore) Delete(ctx context.Context, code string, version int64) error {
	key := s.key(code)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return domain.ErrRoomNotFound
		}
		if err != nil {
			return err
		}
		var current envelope
		if err := json.Unmarshal(raw, &current); err != nil {
			return fmt.Errorf("unmarshal room: %w", err)
		}
		if current.Version != version {
			return domain.ErrVersionConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return domain.ErrVersionConflict
	}
	return err
}

func (s *RoomStore) List(ctx context.Context) ([]domain.Room, error) {
	var rooms []domain.Room
	iter := s.client.Scan(ctx, 0, "room:*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			continue // expired between scan and get
		}
		if err != nil {
			return nil, fmt.Errorf("list rooms: %w", err)
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		rooms = append(rooms, env.Room)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan rooms: %w", err)
	}
	return rooms, nil
}

func (s *RoomStore) key(code string) string {
	return "room:" + code
}
