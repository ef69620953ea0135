package question

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Request describes one generation attempt sent to the external generator.
type Request struct {
	ID         string
	Topic      string
	Difficulty string
	Style      string
	Seed       int64
	Slot       int
}

// Generator produces raw, loosely-formatted candidate output for a request.
// Implementations must respect ctx cancellation; a timeout counts as one
// failed attempt inside the pipeline's retry budget.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorConfig configures the HTTP generator client.
type GeneratorConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// HTTPGenerator talks to an OpenAI-compatible chat-completions endpoint.
type HTTPGenerator struct {
	cfg    GeneratorConfig
	client *http.Client
}

func NewHTTPGenerator(cfg GeneratorConfig) *HTTPGenerator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &HTTPGenerator{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	User        string        `json:"user,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	prompt := fmt.Sprintf(
		"Write one %s multiple-choice trivia question about %s (%s angle, seed %d). "+
			"Reply with JSON only: {\"question\": \"...\", \"options\": [\"a\",\"b\",\"c\",\"d\"], \"answer\": \"...\"} "+
			"with exactly four distinct options and the answer copied verbatim from them. "+
			"The question text must be between 150 and 400 characters.",
		req.Difficulty, req.Topic, req.Style, req.Seed,
	)

	body, err := json.Marshal(chatRequest{
		Model:       g.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.9,
		User:        req.ID,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("generator request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("generator status %d: %s", resp.StatusCode, snippet)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode generator response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("generator returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// NewRequestID tags a generation attempt for tracing on the provider side.
func NewRequestID() string {
	return uuid.NewString()
}

// StaticGenerator serves canned output; useful for dev mode and tests,
// mirroring how a static loader stands in for the real backing store.
type StaticGenerator struct {
	Outputs []string
	calls   int
}

func NewStaticGenerator(outputs ...string) *StaticGenerator {
	return &StaticGenerator{Outputs: outputs}
}

func (g *StaticGenerator) Generate(_ context.Context, _ Request) (string, error) {
	if len(g.Outputs) == 0 {
		return "", fmt.Errorf("static generator has no outputs")
	}
	out := g.Outputs[g.calls%len(g.Outputs)]
	g.calls++
	return out, nil
}
