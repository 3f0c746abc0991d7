package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/outlive-sh/outlive/internal/config"
	"github.com/outlive-sh/outlive/internal/domain/survival"
	"github.com/outlive-sh/outlive/internal/domain/turn"
	"github.com/outlive-sh/outlive/internal/port/wallet"
)

func testContextService(store *fakeStore, balances *fakeBalances) *ContextService {
	cfg := config.Defaults()
	cfg.Agent.ID = "agent-test"
	w := &wallet.Wallet{PublicKey: "PubKey111"}
	return NewContextService(cfg, store, balances, &fakeLedger{height: 1000, healthy: true}, w)
}

func TestBuildHealthy(t *testing.T) {
	store := newFakeStore()
	svc := testContextService(store, &fakeBalances{native: 50_000_000, stable: 150_000_000})

	ac := svc.Build(context.Background())

	if ac.Degraded {
		t.Fatal("healthy build marked degraded")
	}
	if ac.Survival.Tier != survival.TierNormal {
		t.Errorf("tier = %s", ac.Survival.Tier)
	}
	if !ac.Capabilities.CanTrade || !ac.Capabilities.CanSelfModify {
		t.Errorf("capabilities = %+v", ac.Capabilities)
	}
	if ac.Environment.BlockHeight != 1000 {
		t.Errorf("height = %d", ac.Environment.BlockHeight)
	}
	if ac.Identity.PublicKey != "PubKey111" {
		t.Errorf("public key = %s", ac.Identity.PublicKey)
	}
	if len(ac.Goals) == 0 || len(ac.Threats) == 0 || len(ac.Opportunities) == 0 {
		t.Errorf("situation arrays must never be empty: %+v", ac)
	}
}

// Build is idempotent: two builds over unchanged collaborators agree on every
// derived field.
func TestBuildIdempotent(t *testing.T) {
	store := newFakeStore()
	svc := testContextService(store, &fakeBalances{native: 50_000_000, stable: 150_000_000})
	svc.now = func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }

	a := svc.Build(context.Background())
	b := svc.Build(context.Background())

	if a.Survival.Tier != b.Survival.Tier || a.Survival.StableBalance != b.Survival.StableBalance {
		t.Errorf("survival differs: %+v vs %+v", a.Survival, b.Survival)
	}
	if len(a.Goals) != len(b.Goals) || len(a.Threats) != len(b.Threats) {
		t.Errorf("situation differs: %+v vs %+v", a, b)
	}
}

func TestBuildDegradedOnBalanceFailure(t *testing.T) {
	store := newFakeStore()
	svc := testContextService(store, &fakeBalances{err: errors.New("rpc down")})

	ac := svc.Build(context.Background())

	if !ac.Degraded {
		t.Fatal("expected degraded context")
	}
	if ac.Survival.Tier != survival.TierCritical {
		t.Errorf("degraded tier = %s, want critical", ac.Survival.Tier)
	}
	if len(ac.RecentTurns) != 0 {
		t.Errorf("degraded context should have empty history")
	}
	found := false
	for _, th := range ac.Threats {
		if th == "context build failed: balance fetch failed: rpc down" {
			found = true
		}
	}
	if !found {
		t.Errorf("failure not named in threats: %v", ac.Threats)
	}
}

func TestBuildDegradedOnHistoryFailure(t *testing.T) {
	store := newFakeStore()
	store.historyErr = errors.New("pg down")
	svc := testContextService(store, &fakeBalances{stable: 150_000_000})

	ac := svc.Build(context.Background())
	if !ac.Degraded || ac.Survival.Tier != survival.TierCritical {
		t.Errorf("expected degraded critical context, got %+v", ac.Survival)
	}
}

func TestSituationFailureRate(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 4; i++ {
		tr := turn.New()
		tr.Thought = "try something"
		tr.Action = &turn.Action{Tool: "run_command", Error: "exit 1"}
		store.turns = append(store.turns, *tr)
	}
	ok := turn.New()
	ok.Thought = "worked"
	store.turns = append(store.turns, *ok)

	svc := testContextService(store, &fakeBalances{native: 50_000_000, stable: 150_000_000})
	ac := svc.Build(context.Background())

	found := false
	for _, th := range ac.Threats {
		if th == "over half of recent turns failed" {
			found = true
		}
	}
	if !found {
		t.Errorf("failure rate threat missing: %v", ac.Threats)
	}
}

func TestSituationLowFeeReserve(t *testing.T) {
	store := newFakeStore()
	svc := testContextService(store, &fakeBalances{native: 1_000, stable: 150_000_000})

	ac := svc.Build(context.Background())
	found := false
	for _, th := range ac.Threats {
		if th == "native balance too low to cover transaction fees" {
			found = true
		}
	}
	if !found {
		t.Errorf("fee reserve threat missing: %v", ac.Threats)
	}
}

func TestSituationTierGoals(t *testing.T) {
	store := newFakeStore()
	svc := testContextService(store, &fakeBalances{native: 50_000_000, stable: 6_000_000})

	ac := svc.Build(context.Background())
	if ac.Survival.Tier != survival.TierCritical {
		t.Fatalf("tier = %s", ac.Survival.Tier)
	}
	if len(ac.Goals) == 0 {
		t.Fatal("critical tier must produce earning goals")
	}
}

func TestSwappableTierFunc(t *testing.T) {
	store := newFakeStore()
	svc := testContextService(store, &fakeBalances{native: 50_000_000, stable: 1})
	svc.SetTierFunc(func(_ uint64, _ survival.Thresholds) survival.Tier {
		return survival.TierNormal
	})

	ac := svc.Build(context.Background())
	if ac.Survival.Tier != survival.TierNormal {
		t.Errorf("tier func not swapped: %s", ac.Survival.Tier)
	}
}
