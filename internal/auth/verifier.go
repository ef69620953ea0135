// Package auth resolves bearer credentials to verified identities. The
// identity provider itself is an external collaborator; this package only
// wraps its lookup endpoint.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"trivia-room-service/internal/domain"
)

// Identity is the verified principal bound to a connection for its lifetime.
type Identity struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// Verifier validates a bearer credential once, at connect time.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// HTTPVerifier calls the external identity service's lookup endpoint.
type HTTPVerifier struct {
	url    string
	client *http.Client
}

func NewHTTPVerifier(url string, timeout time.Duration) *HTTPVerifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPVerifier{url: url, client: &http.Client{Timeout: timeout}}
}

func (v *HTTPVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, domain.ErrUnauthenticated
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("identity lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Identity{}, domain.ErrUnauthenticated
	}
	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("identity lookup status %d", resp.StatusCode)
	}

	var id Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return Identity{}, fmt.Errorf("decode identity: %w", err)
	}
	if id.UserID == "" {
		return Identity{}, domain.ErrUnauthenticated
	}
	return id, nil
}

// StaticVerifier maps tokens to identities directly; dev mode and tests.
type StaticVerifier struct {
	tokens map[string]Identity
}

func NewStaticVerifier(tokens map[string]Identity) *StaticVerifier {
	return &StaticVerifier{tokens: tokens}
}

func (v *StaticVerifier) Verify(_ context.Context, token string) (Identity, error) {
	if id, ok := v.tokens[token]; ok {
		return id, nil
	}
	return Identity{}, domain.ErrUnauthenticated
}
