package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"briefdesk/internal/types"
)

func completionHandler(failures *int32, failuresWanted int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(failures, 1) <= failuresWanted {
			http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
			return
		}
		resp := OpenAIResponse{}
		resp.Choices = append(resp.Choices, struct {
			Message OpenAIMessage `json:"message"`
		}{Message: OpenAIMessage{Role: "assistant", Content: "all quiet this week"}})
		json.NewEncoder(w).Encode(resp)
	}
}

func TestOpenAIClientRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(completionHandler(&calls, 2))
	defer srv.Close()

	base := 10 * time.Millisecond
	c := NewOpenAIClient(Config{
		APIKey:      "test-key",
		BaseURL:     srv.URL,
		Model:       "test-model",
		Timeout:     5 * time.Second,
		BackoffBase: base,
	})

	start := time.Now()
	got, err := c.CompleteWithSystem(context.Background(), "sys", "user")
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("CompleteWithSystem error = %v", err)
	}
	if got != "all quiet this week" {
		t.Fatalf("completion = %q", got)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("attempts = %d, want 3", n)
	}
	// Two failures mean two backoff sleeps: base, then 2*base.
	if elapsed < 3*base {
		t.Fatalf("elapsed = %v, want at least %v (backoff 1x + 2x base)", elapsed, 3*base)
	}
}

func TestOpenAIClientRetriesExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(completionHandler(&calls, 99))
	defer srv.Close()

	c := NewOpenAIClient(Config{
		APIKey:      "test-key",
		BaseURL:     srv.URL,
		Model:       "test-model",
		Timeout:     5 * time.Second,
		BackoffBase: time.Millisecond,
	})

	_, err := c.CompleteWithSystem(context.Background(), "", "user")

	var merr *types.ModelUnavailableError
	if !errors.As(err, &merr) {
		t.Fatalf("error = %v, want ModelUnavailableError", err)
	}
	if merr.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", merr.Attempts)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("server saw %d calls, want 3", n)
	}
}

func TestOpenAIClientCancellationCutsBackoff(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(completionHandler(&calls, 99))
	defer srv.Close()

	c := NewOpenAIClient(Config{
		APIKey:      "test-key",
		BaseURL:     srv.URL,
		Model:       "test-model",
		Timeout:     5 * time.Second,
		BackoffBase: 10 * time.Second, // would stall without cancellation
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.CompleteWithSystem(ctx, "", "user")
	if err == nil {
		t.Fatal("expected error from cancelled call")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("cancellation took %v, backoff sleep not interruptible", elapsed)
	}
}

func TestAnthropicClientCompletes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q", got)
		}
		var req AnthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.System == "" {
			t.Error("system prompt missing")
		}
		resp := AnthropicResponse{StopReason: "end_turn"}
		resp.Content = append(resp.Content, struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{Type: "text", Text: "summary text"})
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewAnthropicClient(Config{
		APIKey:      "test-key",
		BaseURL:     srv.URL,
		Model:       "test-model",
		Timeout:     5 * time.Second,
		BackoffBase: time.Millisecond,
	})

	got, err := c.Complete(context.Background(), "summarize this")
	if err != nil {
		t.Fatalf("Complete error = %v", err)
	}
	if got != "summary text" {
		t.Fatalf("completion = %q", got)
	}
}

func TestNewClientProviderSelection(t *testing.T) {
	if _, err := NewClient(Config{Provider: "openai"}); err != nil {
		t.Fatalf("openai provider error = %v", err)
	}
	if _, err := NewClient(Config{Provider: "anthropic"}); err != nil {
		t.Fatalf("anthropic provider error = %v", err)
	}
	if _, err := NewClient(Config{Provider: ""}); err != nil {
		t.Fatalf("default provider error = %v", err)
	}
	if _, err := NewClient(Config{Provider: "smoke-signals"}); err == nil {
		t.Fatal("unknown provider accepted")
	}
}
