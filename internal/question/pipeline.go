package question

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"

	"golang.org/x/sync/singleflight"

	"trivia-room-service/internal/domain"
)

// Cache stores accepted questions keyed by (topic, difficulty, slot), so
// redelivering a slot (retried transition, reconnect) is idempotent.
type Cache interface {
	Get(ctx context.Context, topic, difficulty string, slot int) (domain.Question, bool, error)
	Put(ctx context.Context, q domain.Question) error
}

// Composition is the fixed difficulty multiset for one game.
type Composition struct {
	Easy   int
	Medium int
	Hard   int
}

// DefaultComposition matches a 10-question game: 2 easy, 4 medium, 4 hard.
func DefaultComposition() Composition {
	return Composition{Easy: 2, Medium: 4, Hard: 4}
}

// Pipeline produces validated questions with caching, bounded retries and
// a static fallback. It never leaves the caller without a usable question
// unless the cache itself errors.
type Pipeline struct {
	gen        Generator
	cache      Cache
	attempts   int
	comp       Composition
	heuristics Heuristics
	sf         singleflight.Group
}

// Option tunes a Pipeline.
type Option func(*Pipeline)

func WithAttempts(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.attempts = n
		}
	}
}

func WithHeuristics(h Heuristics) Option {
	return func(p *Pipeline) { p.heuristics = h }
}

func WithComposition(c Composition) Option {
	return func(p *Pipeline) {
		if c.Easy+c.Medium+c.Hard > 0 {
			p.comp = c
		}
	}
}

func NewPipeline(gen Generator, cache Cache, opts ...Option) *Pipeline {
	p := &Pipeline{
		gen:        gen,
		cache:      cache,
		attempts:   5,
		comp:       DefaultComposition(),
		heuristics: DefaultHeuristics(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var styleHints = []string{
	"pop culture", "historical", "scientific", "geographic",
	"statistical", "etymological", "record-breaking", "everyday life",
}

// Generate returns the question for the given slot. Difficulty comes from
// difficultyOrder[slot] (medium when out of range). A cache hit returns the
// previously accepted question unchanged; a miss runs up to the attempt
// budget against the generator and falls back to a static question.
func (p *Pipeline) Generate(ctx context.Context, topic string, used []string, slot int, difficultyOrder []string) (domain.Question, error) {
	difficulty := domain.DifficultyMedium
	if slot >= 0 && slot < len(difficultyOrder) {
		difficulty = difficultyOrder[slot]
	}

	if q, ok, err := p.cache.Get(ctx, topic, difficulty, slot); err == nil && ok {
		return q, nil
	}

	key := fmt.Sprintf("%s|%s|%d", topic, difficulty, slot)
	result, err, _ := p.sf.Do(key, func() (interface{}, error) {
		// Re-check in case another caller filled this slot.
		if q, ok, err := p.cache.Get(ctx, topic, difficulty, slot); err == nil && ok {
			return q, nil
		}
		q := p.generate(ctx, topic, used, slot, difficulty)
		if err := p.cache.Put(ctx, q); err != nil {
			log.Printf("question cache put failed for %s: %v", key, err)
		}
		return q, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

func (p *Pipeline) generate(ctx context.Context, topic string, used []string, slot int, difficulty string) domain.Question {
	for attempt := 0; attempt < p.attempts; attempt++ {
		style := styleHints[rand.Intn(len(styleHints))]
		raw, err := p.gen.Generate(ctx, Request{
			ID:         NewRequestID(),
			Topic:      topic,
			Difficulty: difficulty,
			Style:      style,
			Seed:       rand.Int63(),
			Slot:       slot,
		})
		if err != nil {
			log.Printf("question generation attempt %d failed: %v", attempt+1, err)
			continue
		}
		c, err := parseCandidate(raw)
		if err != nil {
			log.Printf("question parse attempt %d rejected: %v", attempt+1, err)
			continue
		}
		if err := validateCandidate(c, used, difficulty, p.heuristics); err != nil {
			log.Printf("question validation attempt %d rejected: %v", attempt+1, err)
			continue
		}
		return domain.Question{
			Prompt:     c.Question,
			Options:    c.Options,
			Answer:     c.Answer,
			Topic:      topic,
			Difficulty: difficulty,
			Style:      style,
			Slot:       slot,
		}
	}
	return fallbackQuestion(topic, difficulty, slot)
}

// Verify checks a submitted answer against the question: trim-insensitive,
// case-insensitive exact match, false when nothing was submitted.
func Verify(q *domain.Question, submitted string) bool {
	if q == nil {
		return false
	}
	trimmed := strings.TrimSpace(submitted)
	if trimmed == "" {
		return false
	}
	return strings.EqualFold(trimmed, strings.TrimSpace(q.Answer))
}

// ShuffleDifficulties returns an unbiased random permutation of the fixed
// difficulty multiset. The composition never varies, only the order.
func (p *Pipeline) ShuffleDifficulties() []string {
	order := make([]string, 0, p.comp.Easy+p.comp.Medium+p.comp.Hard)
	for i := 0; i < p.comp.Easy; i++ {
		order = append(order, domain.DifficultyEasy)
	}
	for i := 0; i < p.comp.Medium; i++ {
		order = append(order, domain.DifficultyMedium)
	}
	for i := 0; i < p.comp.Hard; i++ {
		order = append(order, domain.DifficultyHard)
	}
	rand.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return order
}

// fallbackQuestion is the fixed last resort when every generation attempt
// failed. It is tagged with the requested difficulty and slot so the rest
// of the game proceeds normally.
func fallbackQuestion(topic, difficulty string, slot int) domain.Question {
	return domain.Question{
		Prompt: "Our question writer is momentarily out of ideas, so here is a classic instead: " +
			"the planet Jupiter is by far the largest in the solar system, with a mass greater than " +
			"all the other planets combined. Which of these is the largest moon orbiting it?",
		Options:    []string{"Ganymede", "Europa", "Io", "Callisto"},
		Answer:     "Ganymede",
		Topic:      topic,
		Difficulty: difficulty,
		Style:      "fallback",
		Slot:       slot,
	}
}
