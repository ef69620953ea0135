package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"trivia-room-service/internal/domain"
	"trivia-room-service/internal/game"
)

// RoomStore abstracts versioned room persistence (in-memory, Redis, Postgres).
// Get returns a snapshot plus the version it was read at; Update and Delete
// commit only if the stored version still matches, otherwise
// ErrVersionConflict.
type RoomStore interface {
	Get(ctx context.Context, code string) (*domain.Room, int64, error)
	Create(ctx context.Context, room *domain.Room) error
	Update(ctx context.Context, room *domain.Room, version int64) error
	Delete(ctx context.Context, code string, version int64) error
	List(ctx context.Context) ([]domain.Room, error)
}

// RoomService contains the room use cases. Every mutation runs through the
// update helper: one read-validate-write cycle, retried on conflict, never
// merged or partially applied.
type RoomService struct {
	store       RoomStore
	questions   game.QuestionSource
	questionCap int
	maxRetries  int
}

func NewRoomService(store RoomStore, questions game.QuestionSource) *RoomService {
	return &RoomService{
		store:       store,
		questions:   questions,
		questionCap: domain.DefaultQuestionCap,
		maxRetries:  3,
	}
}

// SetQuestionCap overrides the per-game question cap (config wiring).
func (s *RoomService) SetQuestionCap(n int) {
	if n > 0 {
		s.questionCap = n
	}
}

// Result carries the committed snapshot, its projection and the events the
// gateway should broadcast.
type Result struct {
	Room       domain.Room
	Projection Projection
	Outcome    game.Outcome
}

// CreateRoom allocates a unique six-digit code and persists a waiting room
// with the creator auto-joined.
func (s *RoomService) CreateRoom(ctx context.Context, creator domain.Player, topic string) (Result, error) {
	if creator.ID == "" {
		return Result{}, domain.ErrInvalidInput
	}
	for attempt := 0; attempt < 5; attempt++ {
		code := fmt.Sprintf("%06d", rand.Intn(1000000))
		room := game.Create(code, creator, topic, s.questionCap)
		err := s.store.Create(ctx, room)
		if errors.Is(err, domain.ErrRoomExists) {
			continue
		}
		if err != nil {
			return Result{}, err
		}
		return Result{Room: *room, Projection: Project(room)}, nil
	}
	return Result{}, domain.ErrConflict
}

// ListRooms returns projections of all rooms still accepting players.
func (s *RoomService) ListRooms(ctx context.Context) ([]Projection, error) {
	rooms, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Projection, 0, len(rooms))
	for i := range rooms {
		if rooms[i].Status == domain.StatusWaiting {
			out = append(out, Project(&rooms[i]))
		}
	}
	return out, nil
}

// Sync recomputes the projection without mutating anything.
func (s *RoomService) Sync(ctx context.Context, code string) (Projection, error) {
	room, _, err := s.store.Get(ctx, code)
	if err != nil {
		return Projection{}, err
	}
	return Project(room), nil
}

func (s *RoomService) Join(ctx context.Context, code string, p domain.Player) (Result, error) {
	return s.update(ctx, code, func(r *domain.Room) (game.Outcome, error) {
		return game.Join(r, p)
	})
}

func (s *RoomService) Start(ctx context.Context, code, userID string) (Result, error) {
	return s.update(ctx, code, func(r *domain.Room) (game.Outcome, error) {
		return game.Start(ctx, r, userID, s.questions)
	})
}

func (s *RoomService) SubmitAnswer(ctx context.Context, code, userID, answer string) (Result, error) {
	return s.update(ctx, code, func(r *domain.Room) (game.Outcome, error) {
		return game.SubmitAnswer(ctx, r, userID, answer, s.questions)
	})
}

func (s *RoomService) Leave(ctx context.Context, code, userID string) (Result, error) {
	return s.update(ctx, code, func(r *domain.Room) (game.Outcome, error) {
		return game.Leave(r, userID)
	})
}

func (s *RoomService) End(ctx context.Context, code, userID string) (Result, error) {
	return s.update(ctx, code, func(r *domain.Room) (game.Outcome, error) {
		return game.End(r, userID)
	})
}

// update is the optimistic concurrency controller: load a snapshot, run
// the transition on a clone, write back conditioned on the version being
// unchanged. A losing write retries the whole cycle with jittered backoff;
// transition errors (validation, authorization) are returned immediately.
func (s *RoomService) update(ctx context.Context, code string, fn func(*domain.Room) (game.Outcome, error)) (Result, error) {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		snapshot, version, err := s.store.Get(ctx, code)
		if err != nil {
			return Result{}, err
		}
		room := snapshot.Clone()
		outcome, err := fn(room)
		if err != nil {
			return Result{}, err
		}

		if outcome.Delete {
			err = s.store.Delete(ctx, code, version)
		} else {
			err = s.store.Update(ctx, room, version)
		}
		if errors.Is(err, domain.ErrVersionConflict) {
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(time.Duration(10+rand.Intn(40)) * time.Millisecond):
			}
			continue
		}
		if err != nil {
			return Result{}, err
		}
		return Result{Room: *room, Projection: Project(room), Outcome: outcome}, nil
	}
	return Result{}, domain.ErrConflict
}
