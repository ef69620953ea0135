package domain

import "errors"

var (
	// ErrUnauthenticated is returned when the bearer credential cannot be verified.
	ErrUnauthenticated = errors.New("authentication failed")
	// ErrInvalidInput is returned for malformed action payloads.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRoomNotFound is returned when a room code resolves to nothing.
	ErrRoomNotFound = errors.New("room not found")
	// ErrPlayerNotFound is returned when a user acts on a room they never joined.
	ErrPlayerNotFound = errors.New("player not in room")
	// ErrRoomFull is returned when a fifth player tries to join.
	ErrRoomFull = errors.New("room is full")
	// ErrAlreadyJoined is returned when a member joins twice.
	ErrAlreadyJoined = errors.New("player already in room")
	// ErrNotCreator guards creator-only actions (start, end).
	ErrNotCreator = errors.New("only the room creator may do that")
	// ErrNotYourTurn rejects answers from anyone but the turn-holder.
	ErrNotYourTurn = errors.New("not your turn")
	// ErrNotEnoughPlayers is returned when a game starts with fewer than two players.
	ErrNotEnoughPlayers = errors.New("at least 2 players required to start")
	// ErrWrongStatus is returned when an action is not legal in the room's state.
	ErrWrongStatus = errors.New("action not allowed in current room status")
	// ErrRoomExists is returned when a generated room code is already taken.
	ErrRoomExists = errors.New("room code already taken")
	// ErrVersionConflict signals an optimistic write losing to a concurrent one.
	ErrVersionConflict = errors.New("room changed since read")
	// ErrConflict surfaces only after the retry budget is exhausted.
	ErrConflict = errors.New("room is busy, try again")
	// ErrQuestionGeneration aborts a transition when no usable question exists.
	ErrQuestionGeneration = errors.New("question generation failed")
)
