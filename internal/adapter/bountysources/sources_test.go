package bountysources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/outlive-sh/outlive/internal/domain/bounty"
)

func TestParseReward(t *testing.T) {
	cases := []struct {
		text string
		want uint64
	}{
		{"Fix parser crash $250", 250_000_000},
		{"[$1,000] implement webhook retries", 1_000_000_000},
		{"reward: 500 USDC", 500_000_000},
		{"no amount here", 0},
		{"", 0},
	}
	for _, tc := range cases {
		if got := ParseReward(tc.text); got != tc.want {
			t.Errorf("ParseReward(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestGitHubFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/issues" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"items":[{
			"number": 42,
			"title": "Add rate limiting $100",
			"body": "Implement a limiter for the public API.",
			"state": "open",
			"html_url": "https://github.com/acme/api/issues/42",
			"repository_url": "https://api.github.com/repos/acme/api",
			"labels": [{"name":"bounty"},{"name":"golang"},{"name":"api"}]
		}]}`))
	}))
	defer srv.Close()

	src := NewGitHub(srv.URL, "", "label:bounty state:open", nil)
	got, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 bounty, got %d", len(got))
	}

	b := got[0]
	if b.ID != "github:acme/api#42" {
		t.Errorf("id = %s", b.ID)
	}
	if b.RewardAmount != 100_000_000 {
		t.Errorf("reward = %d", b.RewardAmount)
	}
	if b.Status != bounty.StatusOpen {
		t.Errorf("status = %s", b.Status)
	}
	if len(b.Skills) != 2 || b.Skills[0] != "golang" || b.Skills[1] != "api" {
		t.Errorf("skills = %v", b.Skills)
	}
	if err := b.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestGitHubCheckStatusMerged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/api/issues/42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"number": 42,
			"state": "closed",
			"pull_request": {"merged_at": "2026-08-01T12:00:00Z"}
		}`))
	}))
	defer srv.Close()

	src := NewGitHub(srv.URL, "", "", nil)
	b := &bounty.Bounty{
		ID:       "github:acme/api#42",
		Metadata: map[string]string{"repo": "acme/api", "number": "42"},
	}
	signal, err := src.CheckStatus(context.Background(), b)
	if err != nil {
		t.Fatalf("check status: %v", err)
	}
	if !signal.Closed || !signal.Merged {
		t.Errorf("signal = %+v", signal)
	}
}

func TestWorkboardFetchAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tasks":
			_, _ = w.Write([]byte(`{"tasks":[{
				"id": "t-9",
				"title": "Write integration docs",
				"description": "Document the webhook API.",
				"reward_amount": 75000000,
				"url": "https://board.example/t-9",
				"skills": ["documentation"],
				"status": "open"
			}]}`))
		case "/api/tasks/t-9":
			_, _ = w.Write([]byte(`{"id":"t-9","status":"paid"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	src := NewWorkboard(srv.URL, "key", nil)
	got, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 1 || got[0].ID != "workboard:t-9" {
		t.Fatalf("unexpected fetch result %+v", got)
	}
	if got[0].RewardToken != "USDC" {
		t.Errorf("token default = %s", got[0].RewardToken)
	}

	signal, err := src.CheckStatus(context.Background(), &got[0])
	if err != nil {
		t.Fatalf("check status: %v", err)
	}
	if !signal.Closed || signal.StatusText != "paid" {
		t.Errorf("signal = %+v", signal)
	}
}

func TestCheckStatusMissingMetadata(t *testing.T) {
	src := NewGitHub("http://invalid", "", "", nil)
	if _, err := src.CheckStatus(context.Background(), &bounty.Bounty{ID: "github:x#1"}); err == nil {
		t.Fatal("expected error for missing metadata")
	}
}
