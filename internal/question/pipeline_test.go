package question_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"trivia-room-service/internal/domain"
	"trivia-room-service/internal/infra/memory"
	"trivia-room-service/internal/question"
)

const reefPrompt = "The Great Barrier Reef stretches along the coast of Queensland and is the largest structure on Earth built by living organisms, visible even from orbit. Off the coast of which country does this enormous coral system lie?"

const louvrePrompt = "Painted in the early sixteenth century and now displayed behind protective glass in the Louvre in Paris, this portrait of a Florentine merchant's wife is often called the most famous painting in the world. Who created it?"

func validOutput(prompt, answer string, others ...string) string {
	opts := append([]string{answer}, others...)
	quoted := make([]string, len(opts))
	for i, o := range opts {
		quoted[i] = `"` + o + `"`
	}
	return `{"question": "` + prompt + `", "options": [` + strings.Join(quoted, ", ") + `], "answer": "` + answer + `"}`
}

func mediumOrder() []string {
	return []string{"medium", "medium", "medium", "medium", "medium"}
}

func TestGenerateAcceptsValidCandidate(t *testing.T) {
	gen := question.NewStaticGenerator(validOutput(reefPrompt, "Australia", "Indonesia", "Philippines", "Mexico"))
	p := question.NewPipeline(gen, memory.NewQuestionCache(time.Minute))

	q, err := p.Generate(context.Background(), "geography", nil, 0, mediumOrder())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if q.Prompt != reefPrompt {
		t.Fatalf("unexpected prompt %q", q.Prompt)
	}
	if q.Answer != "Australia" || len(q.Options) != 4 {
		t.Fatalf("unexpected question %+v", q)
	}
	if q.Difficulty != "medium" || q.Slot != 0 {
		t.Fatalf("expected medium/slot 0 tags, got %s/%d", q.Difficulty, q.Slot)
	}
}

func TestGenerateCacheHitIsIdempotent(t *testing.T) {
	gen := &countingGenerator{inner: question.NewStaticGenerator(
		validOutput(reefPrompt, "Australia", "Indonesia", "Philippines", "Mexico"),
		validOutput(louvrePrompt, "Leonardo da Vinci", "Michelangelo", "Raphael", "Titian"),
	)}
	p := question.NewPipeline(gen, memory.NewQuestionCache(time.Minute))

	first, err := p.Generate(context.Background(), "art", nil, 2, mediumOrder())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := p.Generate(context.Background(), "art", nil, 2, mediumOrder())
	if err != nil {
		t.Fatalf("generate again: %v", err)
	}
	if first.Prompt != second.Prompt {
		t.Fatalf("expected cached question back, got %q then %q", first.Prompt, second.Prompt)
	}
	if gen.calls != 1 {
		t.Fatalf("expected one generator call, got %d", gen.calls)
	}
}

func TestGenerateRejectsUsedQuestionDuplicates(t *testing.T) {
	gen := question.NewStaticGenerator(
		validOutput(reefPrompt, "Australia", "Indonesia", "Philippines", "Mexico"),
		validOutput(louvrePrompt, "Leonardo da Vinci", "Michelangelo", "Raphael", "Titian"),
	)
	p := question.NewPipeline(gen, memory.NewQuestionCache(time.Minute))

	used := []string{reefPrompt}
	q, err := p.Generate(context.Background(), "mixed", used, 0, mediumOrder())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if q.Prompt == reefPrompt {
		t.Fatalf("duplicate of used question was accepted")
	}
	if q.Prompt != louvrePrompt {
		t.Fatalf("expected the fresh candidate, got %q", q.Prompt)
	}
}

func TestGenerateFallsBackAfterExhaustedAttempts(t *testing.T) {
	gen := question.NewStaticGenerator("the model rambled and returned no JSON at all")
	p := question.NewPipeline(gen, memory.NewQuestionCache(time.Minute), question.WithAttempts(3))

	q, err := p.Generate(context.Background(), "history", nil, 4, []string{"easy", "easy", "easy", "easy", "hard"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if q.Style != "fallback" {
		t.Fatalf("expected fallback question, got style %q", q.Style)
	}
	if q.Difficulty != "hard" || q.Slot != 4 {
		t.Fatalf("fallback should carry difficulty/slot tags, got %s/%d", q.Difficulty, q.Slot)
	}
	if len(q.Options) != 4 {
		t.Fatalf("fallback must still be playable, got %d options", len(q.Options))
	}
}

func TestGenerateDefaultsToMediumOutOfRange(t *testing.T) {
	gen := question.NewStaticGenerator(validOutput(reefPrompt, "Australia", "Indonesia", "Philippines", "Mexico"))
	p := question.NewPipeline(gen, memory.NewQuestionCache(time.Minute))

	q, err := p.Generate(context.Background(), "geography", nil, 42, []string{"hard"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if q.Difficulty != domain.DifficultyMedium {
		t.Fatalf("expected medium for out-of-range slot, got %s", q.Difficulty)
	}
}

func TestVerify(t *testing.T) {
	q := &domain.Question{Answer: "Paris"}
	if !question.Verify(q, " paris ") {
		t.Fatalf("expected trim/case-insensitive match")
	}
	if question.Verify(q, "") {
		t.Fatalf("empty submission must not verify")
	}
	if question.Verify(q, "London") {
		t.Fatalf("wrong answer must not verify")
	}
	if question.Verify(nil, "Paris") {
		t.Fatalf("nil question must not verify")
	}
}

func TestShuffleDifficultiesKeepsComposition(t *testing.T) {
	p := question.NewPipeline(question.NewStaticGenerator(), memory.NewQuestionCache(time.Minute))

	for i := 0; i < 20; i++ {
		order := p.ShuffleDifficulties()
		if len(order) != 10 {
			t.Fatalf("expected 10 slots, got %d", len(order))
		}
		counts := map[string]int{}
		for _, d := range order {
			counts[d]++
		}
		if counts[domain.DifficultyEasy] != 2 || counts[domain.DifficultyMedium] != 4 || counts[domain.DifficultyHard] != 4 {
			t.Fatalf("composition changed: %v", counts)
		}
	}
}

type countingGenerator struct {
	inner question.Generator
	calls int
}

func (g *countingGenerator) Generate(ctx context.Context, req question.Request) (string, error) {
	g.calls++
	return g.inner.Generate(ctx, req)
}
