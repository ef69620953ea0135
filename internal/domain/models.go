package domain

import "time"

// RoomStatus is the lifecycle state of a game room.
type RoomStatus string

const (
	StatusWaiting    RoomStatus = "waiting"
	StatusInProgress RoomStatus = "in_progress"
	StatusFinished   RoomStatus = "finished"
)

// Difficulty labels used in the per-game difficulty order.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// MaxPlayers caps room membership.
const MaxPlayers = 4

// DefaultQuestionCap is the number of questions in a full game.
const DefaultQuestionCap = 10

// Player is a room member resolved from the identity service.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Score tracks one player's running total: one entry per player,
// created on join, removed on leave.
type Score struct {
	PlayerID string `json:"playerId"`
	Score    int    `json:"score"`
}

// Question is the current question held by a room. It is ephemeral:
// only the room's CurrentQuestion slot ever holds one.
type Question struct {
	Prompt     string   `json:"prompt"`
	Options    []string `json:"options"`
	Answer     string   `json:"answer"`
	Topic      string   `json:"topic"`
	Difficulty string   `json:"difficulty"`
	Style      string   `json:"style,omitempty"`
	Slot       int      `json:"slot"`
}

// Room is the single shared mutable record for one game. Every mutation
// goes through a version-checked write; the version lives next to the
// snapshot in whichever store holds it.
type Room struct {
	Code                    string     `json:"roomCode"`
	CreatorID               string     `json:"creatorId"`
	Topic                   string     `json:"topic"`
	Players                 []Player   `json:"players"`
	Scores                  []Score    `json:"scores"`
	Status                  RoomStatus `json:"status"`
	CurrentPlayerIndex      *int       `json:"currentPlayerIndex"`
	CurrentQuestion         *Question  `json:"currentQuestion"`
	CurrentQuestionAttempts int        `json:"currentQuestionAttempts"`
	QuestionCount           int        `json:"questionCount"`
	QuestionCap             int        `json:"questionCap"`
	UsedQuestions           []string   `json:"usedQuestions"`
	DifficultyOrder         []string   `json:"difficultyOrder"`
	CreatedAt               time.Time  `json:"createdAt"`
}

// HasPlayer reports whether the given user is a room member.
func (r *Room) HasPlayer(userID string) bool {
	return r.PlayerIndex(userID) >= 0
}

// PlayerIndex returns the position of userID in the players list, or -1.
func (r *Room) PlayerIndex(userID string) int {
	for i, p := range r.Players {
		if p.ID == userID {
			return i
		}
	}
	return -1
}

// ScoreFor returns the running score for userID, or 0 if absent.
func (r *Room) ScoreFor(userID string) int {
	for _, s := range r.Scores {
		if s.PlayerID == userID {
			return s.Score
		}
	}
	return 0
}

// CurrentPlayer returns the player whose turn it is, if the game is live.
func (r *Room) CurrentPlayer() (Player, bool) {
	if r.Status != StatusInProgress || r.CurrentPlayerIndex == nil {
		return Player{}, false
	}
	i := *r.CurrentPlayerIndex
	if i < 0 || i >= len(r.Players) {
		return Player{}, false
	}
	return r.Players[i], true
}

// Clone returns a deep copy so a transition can be computed without
// touching the snapshot that was read.
func (r *Room) Clone() *Room {
	cp := *r
	cp.Players = append([]Player(nil), r.Players...)
	cp.Scores = append([]Score(nil), r.Scores...)
	cp.UsedQuestions = append([]string(nil), r.UsedQuestions...)
	cp.DifficultyOrder = append([]string(nil), r.DifficultyOrder...)
	if r.CurrentPlayerIndex != nil {
		idx := *r.CurrentPlayerIndex
		cp.CurrentPlayerIndex = &idx
	}
	if r.CurrentQuestion != nil {
		q := *r.CurrentQuestion
		q.Options = append([]string(nil), r.CurrentQuestion.Options...)
		cp.CurrentQuestion = &q
	}
	return &cp
}
