// Package game holds the pure turn and room transition logic. Functions
// here mutate the snapshot they are handed and never touch storage; the
// caller runs them inside an optimistic read-validate-write cycle, so an
// error means the whole transition is discarded.
package game

import (
	"context"
	"fmt"
	"strings"
	"time"

	"trivia-room-service/internal/domain"
	"trivia-room-service/internal/question"
)

// QuestionSource supplies validated questions and the per-game difficulty
// order. Satisfied by *question.Pipeline.
type QuestionSource interface {
	Generate(ctx context.Context, topic string, used []string, slot int, difficultyOrder []string) (domain.Question, error)
	ShuffleDifficulties() []string
}

// EventType enumerates the notifications a transition produces.
type EventType string

const (
	EventPlayerJoined    EventType = "playerJoined"
	EventPlayerLeft      EventType = "playerLeft"
	EventGameStarted     EventType = "gameStarted"
	EventCorrectAnswer   EventType = "correctAnswer"
	EventIncorrectAnswer EventType = "incorrectAnswer"
	EventNoAnswer        EventType = "noAnswer"
	EventScoreUpdate     EventType = "scoreUpdate"
	EventGameEnded       EventType = "gameEnded"
)

// Event is a broadcast-ready notification emitted by a transition.
type Event struct {
	Type          EventType
	PlayerID      string
	Name          string
	Score         int
	CorrectAnswer string
}

// Outcome reports what a committed transition should trigger.
type Outcome struct {
	Events []Event
	// Delete is set when the room emptied out and must be removed.
	Delete bool
}

// Score deltas per answer outcome.
const (
	pointsCorrect   = 10
	pointsIncorrect = -5
)

// Create builds a fresh waiting room with the creator auto-joined.
func Create(code string, creator domain.Player, topic string, questionCap int) *domain.Room {
	if questionCap <= 0 {
		questionCap = domain.DefaultQuestionCap
	}
	return &domain.Room{
		Code:        code,
		CreatorID:   creator.ID,
		Topic:       topic,
		Players:     []domain.Player{creator},
		Scores:      []domain.Score{{PlayerID: creator.ID}},
		Status:      domain.StatusWaiting,
		QuestionCap: questionCap,
		CreatedAt:   time.Now().UTC(),
	}
}

// Join appends a player with a zero score. The duplicate check runs first
// so a present player rejoining a finished room still resolves to a sync.
func Join(r *domain.Room, p domain.Player) (Outcome, error) {
	if r.HasPlayer(p.ID) {
		return Outcome{}, domain.ErrAlreadyJoined
	}
	if r.Status == domain.StatusFinished {
		return Outcome{}, domain.ErrWrongStatus
	}
	if len(r.Players) >= domain.MaxPlayers {
		return Outcome{}, domain.ErrRoomFull
	}
	r.Players = append(r.Players, p)
	r.Scores = append(r.Scores, domain.Score{PlayerID: p.ID})
	return Outcome{Events: []Event{{Type: EventPlayerJoined, PlayerID: p.ID, Name: p.Name}}}, nil
}

// Start moves the room into play: creator only, waiting only, two or more
// players. A generation failure aborts the transition entirely.
func Start(ctx context.Context, r *domain.Room, userID string, qs QuestionSource) (Outcome, error) {
	if userID != r.CreatorID {
		return Outcome{}, domain.ErrNotCreator
	}
	if r.Status != domain.StatusWaiting {
		return Outcome{}, domain.ErrWrongStatus
	}
	if len(r.Players) < 2 {
		return Outcome{}, domain.ErrNotEnoughPlayers
	}
	if len(r.DifficultyOrder) == 0 {
		r.DifficultyOrder = qs.ShuffleDifficulties()
	}
	if r.QuestionCap <= 0 {
		r.QuestionCap = domain.DefaultQuestionCap
	}
	q, err := qs.Generate(ctx, r.Topic, r.UsedQuestions, 0, r.DifficultyOrder)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", domain.ErrQuestionGeneration, err)
	}
	r.CurrentQuestion = &q
	r.UsedQuestions = append(r.UsedQuestions, q.Prompt)
	zero := 0
	r.CurrentPlayerIndex = &zero
	r.CurrentQuestionAttempts = 0
	r.QuestionCount = 1
	r.Status = domain.StatusInProgress
	return Outcome{Events: []Event{{Type: EventGameStarted}}}, nil
}

// SubmitAnswer scores the turn-holder's answer, then either keeps the
// question for the next player or advances the round.
func SubmitAnswer(ctx context.Context, r *domain.Room, userID, answer string, qs QuestionSource) (Outcome, error) {
	if r.Status != domain.StatusInProgress {
		return Outcome{}, domain.ErrWrongStatus
	}
	idx := r.PlayerIndex(userID)
	if idx < 0 {
		return Outcome{}, domain.ErrPlayerNotFound
	}
	if r.CurrentPlayerIndex == nil || *r.CurrentPlayerIndex != idx {
		return Outcome{}, domain.ErrNotYourTurn
	}
	if r.CurrentQuestion == nil {
		return Outcome{}, domain.ErrInvalidInput
	}

	correct := question.Verify(r.CurrentQuestion, answer)
	var eventType EventType
	var delta int
	switch {
	case correct:
		eventType, delta = EventCorrectAnswer, pointsCorrect
	case strings.TrimSpace(answer) == "":
		eventType, delta = EventNoAnswer, 0
	default:
		eventType, delta = EventIncorrectAnswer, pointsIncorrect
	}

	total := 0
	for i := range r.Scores {
		if r.Scores[i].PlayerID == userID {
			r.Scores[i].Score += delta
			total = r.Scores[i].Score
			break
		}
	}
	r.CurrentQuestionAttempts++
	revealed := r.CurrentQuestion.Answer

	events := []Event{{
		Type:          eventType,
		PlayerID:      userID,
		Name:          r.Players[idx].Name,
		Score:         total,
		CorrectAnswer: revealed,
	}}

	next := (*r.CurrentPlayerIndex + 1) % len(r.Players)
	if correct || r.CurrentQuestionAttempts >= len(r.Players) {
		// Round over: everyone had their chance or someone got it.
		r.CurrentQuestionAttempts = 0
		r.CurrentPlayerIndex = &next
		if r.QuestionCount < r.QuestionCap {
			q, err := qs.Generate(ctx, r.Topic, r.UsedQuestions, r.QuestionCount, r.DifficultyOrder)
			if err != nil {
				return Outcome{}, fmt.Errorf("%w: %v", domain.ErrQuestionGeneration, err)
			}
			r.CurrentQuestion = &q
			r.UsedQuestions = append(r.UsedQuestions, q.Prompt)
			r.QuestionCount++
		} else {
			finish(r)
			events = append(events, Event{Type: EventScoreUpdate}, Event{Type: EventGameEnded})
			return Outcome{Events: events}, nil
		}
	} else {
		// Same question, next player's try.
		r.CurrentPlayerIndex = &next
	}
	events = append(events, Event{Type: EventScoreUpdate})
	return Outcome{Events: events}, nil
}

// Leave removes the player and their score. The creator leaving ends the
// game; the last player leaving deletes the room.
func Leave(r *domain.Room, userID string) (Outcome, error) {
	idx := r.PlayerIndex(userID)
	if idx < 0 {
		return Outcome{}, domain.ErrPlayerNotFound
	}
	name := r.Players[idx].Name
	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)
	for i := range r.Scores {
		if r.Scores[i].PlayerID == userID {
			r.Scores = append(r.Scores[:i], r.Scores[i+1:]...)
			break
		}
	}

	events := []Event{{Type: EventPlayerLeft, PlayerID: userID, Name: name}}
	if len(r.Players) == 0 {
		return Outcome{Events: events, Delete: true}, nil
	}

	if userID == r.CreatorID {
		finish(r)
		events = append(events, Event{Type: EventGameEnded})
		return Outcome{Events: events}, nil
	}

	if r.Status == domain.StatusInProgress && r.CurrentPlayerIndex != nil {
		ptr := *r.CurrentPlayerIndex
		if idx < ptr {
			ptr--
		}
		if ptr >= len(r.Players) {
			ptr = 0
		}
		r.CurrentPlayerIndex = &ptr
	}
	return Outcome{Events: events}, nil
}

// End force-finishes the game. Creator only.
func End(r *domain.Room, userID string) (Outcome, error) {
	if userID != r.CreatorID {
		return Outcome{}, domain.ErrNotCreator
	}
	finish(r)
	return Outcome{Events: []Event{{Type: EventGameEnded}}}, nil
}

func finish(r *domain.Room) {
	r.Status = domain.StatusFinished
	r.CurrentQuestion = nil
	r.CurrentPlayerIndex = nil
	r.CurrentQuestionAttempts = 0
}
