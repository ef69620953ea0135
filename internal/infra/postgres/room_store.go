package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-room-service/internal/domain"
)

// RoomStore persists rooms as JSONB rows with an explicit version column.
// Conditional UPDATE and DELETE (... WHERE version matches) are the
// optimistic writes; zero rows affected means someone else committed first.
type RoomStore struct {
	pool *pgxpool.Pool
}

func NewRoomStore(pool *pgxpool.Pool) *RoomStore {
	return &RoomStore{pool: pool}
}

func (s *RoomStore) Get(ctx context.Context, code string) (*domain.Room, int64, error) {
	var raw []byte
	var version int64
	err := s.pool.QueryRow(ctx, `SELECT data, version FROM rooms WHERE code=$1`, code).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load room: %w", err)
	}
	var room domain.Room
	if err := json.Unmarshal(raw, &room); err != nil {
		return nil, 0, fmt.Errorf("unmarshal room: %w", err)
	}
	return &room, version, nil
}

func (s *RoomStore) Create(ctx context.Context, room *domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO rooms (code, data, version) VALUES ($1, $2, 1) ON CONFLICT (code) DO NOTHING`,
		room.Code, data)
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRoomExists
	}
	return nil
}

func (s *RoomStore) Update(ctx context.Context, room *domain.Room, version int64) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE rooms SET data=$1, version=version+1 WHERE code=$2 AND version=$3`,
		data, room.Code, version)
	if err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM rooms WHERE code=$1)`, room.Code).Scan(&exists); err == nil && !exists {
			return domain.ErrRoomNotFound
		}
		return domain.ErrVersionConflict
	}
	return nil
}

func (s *RoomStore) Delete(ctx context.Context, code string, version int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE code=$1 AND version=$2`, code, version)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM rooms WHERE code=$1)`, code).Scan(&exists); err == nil && !exists {
			return domain.ErrRoomNotFound
		}
		return domain.ErrVersionConflict
	}
	return nil
}

func (s *RoomStore) List(ctx context.Context) ([]domain.Room, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM rooms ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []domain.Room
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var room domain.Room
		if err := json.Unmarshal(raw, &room); err != nil {
			continue
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}
