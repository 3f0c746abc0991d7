package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/outlive-sh/outlive/internal/port/reasoning"
	"github.com/outlive-sh/outlive/internal/resilience"
)

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		var req completionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "frontier-1" || len(req.Messages) != 2 {
			t.Errorf("unexpected request %+v", req)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"THOUGHT: scan for bounties"}}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	out, err := client.Complete(context.Background(), reasoning.Request{
		Model: "frontier-1",
		Messages: []reasoning.Message{
			{Role: reasoning.RoleSystem, Content: "you are an agent"},
			{Role: reasoning.RoleUser, Content: "decide"},
		},
		MaxTokens: 256,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != "THOUGHT: scan for bounties" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	if _, err := client.Complete(context.Background(), reasoning.Request{Model: "m"}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestCompleteRetriesTransientErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"recovered"}}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	client.retryBase = time.Millisecond

	out, err := client.Complete(context.Background(), reasoning.Request{Model: "m"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != "recovered" {
		t.Errorf("unexpected output %q", out)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestCompleteExhaustsAttempts(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	client.retryBase = time.Millisecond

	if _, err := client.Complete(context.Background(), reasoning.Request{Model: "m"}); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != completionAttempts {
		t.Errorf("calls = %d, want %d", calls, completionAttempts)
	}
}

func TestCompleteBreakerOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	client.attempts = 1
	client.SetBreaker(resilience.NewBreaker(2, time.Minute))

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := client.Complete(ctx, reasoning.Request{Model: "m"}); err == nil {
			t.Fatal("expected upstream error")
		}
	}
	if _, err := client.Complete(ctx, reasoning.Request{Model: "m"}); err == nil {
		t.Fatal("expected circuit open error")
	}
}
