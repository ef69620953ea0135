package app

import "trivia-room-service/internal/domain"

// ProjectedQuestion is the client-facing question view. The correct answer
// is stripped here and only revealed through answer-outcome events.
type ProjectedQuestion struct {
	Prompt     string   `json:"prompt"`
	Options    []string `json:"options"`
	Difficulty string   `json:"difficulty"`
	Slot       int      `json:"slot"`
}

// Projection is the externally-visible, display-ready view of a room.
type Projection struct {
	RoomCode      string             `json:"roomCode"`
	Topic         string             `json:"topic"`
	Status        domain.RoomStatus  `json:"status"`
	CreatorID     string             `json:"creatorId"`
	Players       []domain.Player    `json:"players"`
	Scores        []domain.Score     `json:"scores"`
	CurrentTurn   *domain.Player     `json:"currentTurn,omitempty"`
	Question      *ProjectedQuestion `json:"question,omitempty"`
	QuestionCount int                `json:"questionCount"`
	QuestionCap   int                `json:"questionCap"`
}

// Project builds the broadcast view from a room snapshot.
func Project(r *domain.Room) Projection {
	p := Projection{
		RoomCode:      r.Code,
		Topic:         r.Topic,
		Status:        r.Status,
		CreatorID:     r.CreatorID,
		Players:       append([]domain.Player(nil), r.Players...),
		Scores:        append([]domain.Score(nil), r.Scores...),
		QuestionCount: r.QuestionCount,
		QuestionCap:   r.QuestionCap,
	}
	if turn, ok := r.CurrentPlayer(); ok {
		p.CurrentTurn = &turn
	}
	if q := r.CurrentQuestion; q != nil {
		p.Question = &ProjectedQuestion{
			Prompt:     q.Prompt,
			Options:    append([]string(nil), q.Options...),
			Difficulty: q.Difficulty,
			Slot:       q.Slot,
		}
	}
	return p
}
