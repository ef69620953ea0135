package question

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// candidate is the shape expected inside the generator's raw output.
type candidate struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

const (
	minPromptLen = 150
	maxPromptLen = 400
)

// Heuristics holds the tunable thresholds for the difficulty check.
// They are guesses, not guarantees; misclassification only costs one
// retry out of the attempt budget.
type Heuristics struct {
	// DuplicateOverlap rejects prompts sharing more than this fraction of
	// significant tokens with a used question.
	DuplicateOverlap float64
	// EasyMaxComplexity is the highest complexity score an easy prompt may have.
	EasyMaxComplexity int
	// HardMinComplexity is the lowest complexity score a hard prompt must have.
	HardMinComplexity int
}

// DefaultHeuristics matches a 10-question trivia game.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		DuplicateOverlap:  0.5,
		EasyMaxComplexity: 8,
		HardMinComplexity: 2,
	}
}

// parseCandidate extracts the first JSON object from loosely-formatted
// generator output, tolerating markdown fences and surrounding prose.
func parseCandidate(raw string) (candidate, error) {
	var c candidate
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return c, fmt.Errorf("no JSON object in output")
	}
	depth := 0
	for i := start; i < len(raw); i++ {
		switch raw[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				if err := json.Unmarshal([]byte(raw[start:i+1]), &c); err != nil {
					return c, fmt.Errorf("unmarshal candidate: %w", err)
				}
				return c, nil
			}
		}
	}
	return c, fmt.Errorf("unterminated JSON object in output")
}

// validateCandidate runs the structural checks from the generation contract.
func validateCandidate(c candidate, used []string, difficulty string, h Heuristics) error {
	if len(c.Options) != 4 {
		return fmt.Errorf("expected 4 options, got %d", len(c.Options))
	}
	seen := make(map[string]struct{}, 4)
	answerFound := false
	for _, opt := range c.Options {
		key := strings.ToLower(strings.TrimSpace(opt))
		if key == "" {
			return fmt.Errorf("blank option")
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate option %q", opt)
		}
		seen[key] = struct{}{}
		if strings.EqualFold(strings.TrimSpace(opt), strings.TrimSpace(c.Answer)) {
			answerFound = true
		}
	}
	if !answerFound {
		return fmt.Errorf("answer %q not among options", c.Answer)
	}
	if l := len(c.Question); l < minPromptLen || l > maxPromptLen {
		return fmt.Errorf("prompt length %d outside [%d,%d]", l, minPromptLen, maxPromptLen)
	}
	for _, prev := range used {
		if overlapRatio(c.Question, prev) > h.DuplicateOverlap {
			return fmt.Errorf("near-duplicate of a used question")
		}
	}
	if err := checkDifficulty(c.Question, difficulty, h); err != nil {
		return err
	}
	return nil
}

// significantTokens lowercases, strips punctuation and drops filler words.
func significantTokens(s string) map[string]struct{} {
	tokens := make(map[string]struct{})
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, f := range fields {
		if len(f) < 4 || stopwords[f] {
			continue
		}
		tokens[f] = struct{}{}
	}
	return tokens
}

var stopwords = map[string]bool{
	"what": true, "which": true, "where": true, "when": true, "whom": true,
	"this": true, "that": true, "these": true, "those": true, "with": true,
	"from": true, "into": true, "about": true, "following": true, "does": true,
	"known": true, "name": true, "called": true, "considered": true,
}

// overlapRatio is the shared significant-token fraction relative to the
// smaller of the two prompts, so a short rephrase of a long question
// still trips the check.
func overlapRatio(a, b string) float64 {
	ta, tb := significantTokens(a), significantTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			shared++
		}
	}
	smaller := len(ta)
	if len(tb) < smaller {
		smaller = len(tb)
	}
	return float64(shared) / float64(smaller)
}

// hardMarkers weight words that signal a demanding question.
var hardMarkers = []string{
	"precisely", "specifically", "obscure", "earliest", "derive",
	"exception", "contrast", "lesser-known", "technically", "original",
}

// complexityScore is a crude proxy: long words plus hard-marker hits.
func complexityScore(prompt string) int {
	score := 0
	for _, f := range strings.Fields(strings.ToLower(prompt)) {
		if len(strings.Trim(f, ".,?!\"'()")) >= 9 {
			score++
		}
	}
	for _, m := range hardMarkers {
		if strings.Contains(strings.ToLower(prompt), m) {
			score += 2
		}
	}
	return score
}

func checkDifficulty(prompt, difficulty string, h Heuristics) error {
	score := complexityScore(prompt)
	switch difficulty {
	case "easy":
		if score > h.EasyMaxComplexity {
			return fmt.Errorf("prompt too complex for easy (score %d)", score)
		}
	case "hard":
		if score < h.HardMinComplexity {
			return fmt.Errorf("prompt too simple for hard (score %d)", score)
		}
	}
	return nil
}
