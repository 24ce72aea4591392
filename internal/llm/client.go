// Package llm implements the model endpoint clients. Providers share
// the same shape: one HTTP completion call guarded by a bounded retry
// loop with exponential backoff. Retry exhaustion surfaces as a
// *types.ModelUnavailableError; callers never see raw transport errors.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"briefdesk/internal/types"
)

const (
	// maxAttempts is the total call budget per completion: one initial
	// attempt plus two retries.
	maxAttempts = 3

	// defaultBackoffBase is the first retry delay; it doubles per retry.
	defaultBackoffBase = time.Second

	defaultTimeout = 2 * time.Minute

	defaultSystemPrompt = "You are a concise assistant that summarizes workplace activity for a single operator."
)

// Config selects and configures a provider client.
type Config struct {
	Provider    string // "openai" (OpenAI-compatible) or "anthropic"
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	BackoffBase time.Duration // test hook; zero selects the 1s default
}

// NewClient returns the provider client for the given config.
func NewClient(cfg Config) (types.LLMClient, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}

	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		return NewOpenAIClient(cfg), nil
	case "anthropic":
		return NewAnthropicClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}

// backoffDelay returns the sleep before the given retry attempt
// (attempt >= 1): base, 2*base, 4*base, ...
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base << uint(attempt-1)
}

// sleepBackoff waits for the backoff delay, honoring cancellation: the
// caller's context must be able to cut a retry loop short.
func sleepBackoff(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
