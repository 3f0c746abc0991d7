package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/outlive-sh/outlive/internal/config"
	"github.com/outlive-sh/outlive/internal/domain/agentstate"
	"github.com/outlive-sh/outlive/internal/domain/survival"
	"github.com/outlive-sh/outlive/internal/domain/turn"
	"github.com/outlive-sh/outlive/internal/port/database"
	"github.com/outlive-sh/outlive/internal/port/ledger"
	"github.com/outlive-sh/outlive/internal/port/wallet"
)

// lowFeeReserve is the lamport balance below which the agent cannot reliably
// pay transaction fees.
const lowFeeReserve = 5_000_000

// ContextService assembles the per-cycle context snapshot. Build never fails:
// any internal error degrades to a conservative CRITICAL-tier context so the
// loop can always produce a prompt.
type ContextService struct {
	cfg      config.Config
	store    database.Store
	balances wallet.BalanceProvider
	chain    ledger.Client
	wallet   *wallet.Wallet
	tierFn   survival.TierFunc
	now      func() time.Time
}

// NewContextService creates a ContextService using the standard tier function.
func NewContextService(cfg config.Config, store database.Store, balances wallet.BalanceProvider, chain ledger.Client, w *wallet.Wallet) *ContextService {
	return &ContextService{
		cfg:      cfg,
		store:    store,
		balances: balances,
		chain:    chain,
		wallet:   w,
		tierFn:   survival.TierFor,
		now:      time.Now,
	}
}

// SetTierFunc swaps the tier comparator, e.g. for a hysteresis variant.
func (s *ContextService) SetTierFunc(fn survival.TierFunc) { s.tierFn = fn }

// Build assembles the context for one decision cycle.
func (s *ContextService) Build(ctx context.Context) agentstate.Context {
	bal, err := s.balances.GetBalance(ctx, s.wallet)
	if err != nil {
		return s.degraded(fmt.Sprintf("balance fetch failed: %v", err))
	}

	tier := s.tierFn(bal.Stable, s.cfg.Survival.Thresholds)
	caps := survival.CapabilitiesFor(tier)

	height, err := s.chain.CurrentHeight(ctx)
	if err != nil {
		// Height is informational; a stale zero is acceptable.
		slog.Warn("block height fetch failed", "error", err)
		height = 0
	}

	recent, err := s.store.GetRecentTurns(ctx, s.cfg.Agent.HistoryTurns)
	if err != nil {
		return s.degraded(fmt.Sprintf("turn history fetch failed: %v", err))
	}

	days := 0
	if first, err := s.store.GetFirstTurn(ctx); err == nil && first != nil {
		days = int(s.now().Sub(first.Timestamp).Hours() / 24)
	}

	ac := agentstate.Context{
		Identity: agentstate.Identity{
			AgentID:    s.cfg.Agent.ID,
			PublicKey:  s.wallet.PublicKey,
			Generation: s.cfg.Agent.Generation,
			ParentID:   s.cfg.Agent.ParentID,
		},
		Survival: agentstate.Survival{
			Tier:            tier,
			NativeBalance:   bal.Native,
			StableBalance:   bal.Stable,
			NativeFormatted: bal.NativeFormatted,
			StableFormatted: bal.StableFormatted,
			DaysSurvived:    days,
		},
		Environment: agentstate.Environment{
			Network:      s.cfg.Agent.Network,
			BlockHeight:  height,
			Time:         s.now().UTC(),
			IsProduction: s.cfg.Agent.IsProduction(),
		},
		Capabilities: caps,
		RecentTurns:  summarize(recent),
	}

	s.analyzeSituation(&ac)
	return ac
}

// degraded returns the conservative fallback context with tier forced to
// CRITICAL and the failure surfaced as a threat.
func (s *ContextService) degraded(reason string) agentstate.Context {
	slog.Error("context build degraded", "reason", reason)

	tier := survival.TierCritical
	ac := agentstate.Context{
		Identity: agentstate.Identity{
			AgentID:    s.cfg.Agent.ID,
			Generation: s.cfg.Agent.Generation,
			ParentID:   s.cfg.Agent.ParentID,
		},
		Survival: agentstate.Survival{Tier: tier},
		Environment: agentstate.Environment{
			Network:      s.cfg.Agent.Network,
			Time:         s.now().UTC(),
			IsProduction: s.cfg.Agent.IsProduction(),
		},
		Capabilities: survival.CapabilitiesFor(tier),
		Threats:      []string{"context build failed: " + reason},
		Degraded:     true,
	}
	if s.wallet != nil {
		ac.Identity.PublicKey = s.wallet.PublicKey
	}
	s.analyzeSituation(&ac)
	return ac
}

// analyzeSituation appends threats, opportunities and goals derived from the
// assembled snapshot. Arrays are never left empty.
func (s *ContextService) analyzeSituation(ac *agentstate.Context) {
	switch ac.Survival.Tier {
	case survival.TierDead:
		ac.Threats = append(ac.Threats, "funds exhausted, operation is no longer sustainable")
		ac.Goals = append(ac.Goals, "secure any income immediately to resume operation")
	case survival.TierCritical:
		ac.Threats = append(ac.Threats, "funds critically low, compute budget nearly exhausted")
		ac.Goals = append(ac.Goals, "earn income now: scan and complete the fastest viable bounty")
	case survival.TierLowCompute:
		ac.Threats = append(ac.Threats, "funds below comfortable runway")
		ac.Goals = append(ac.Goals, "prioritize high-ROI bounties to restore normal operation")
	}

	if n := len(ac.RecentTurns); n > 0 {
		failed := 0
		for _, t := range ac.RecentTurns {
			if t.Failed {
				failed++
			}
		}
		if failed*2 > n {
			ac.Threats = append(ac.Threats, "over half of recent turns failed")
			ac.Goals = append(ac.Goals, "debug the recent failures before taking on new work")
		}
	}

	if !ac.Degraded && ac.Survival.NativeBalance < lowFeeReserve {
		ac.Threats = append(ac.Threats, "native balance too low to cover transaction fees")
		ac.Goals = append(ac.Goals, "acquire fee currency before attempting transfers")
	}

	if ac.Environment.IsProduction {
		ac.Opportunities = append(ac.Opportunities, "production network: earned income is real")
	} else {
		ac.Opportunities = append(ac.Opportunities, "test network: safe to experiment with strategies")
	}

	if len(ac.Goals) == 0 {
		ac.Goals = append(ac.Goals, "maintain healthy runway and grow the balance")
	}
	if len(ac.Threats) == 0 {
		ac.Threats = append(ac.Threats, "none identified this cycle")
	}
}

// summarize condenses stored turns for prompting.
func summarize(turns []turn.Turn) []agentstate.TurnSummary {
	out := make([]agentstate.TurnSummary, 0, len(turns))
	for _, t := range turns {
		s := agentstate.TurnSummary{
			Thought:     t.Thought,
			Observation: t.Observation,
			Failed:      t.Failed(),
		}
		if t.Action != nil {
			s.Tool = string(t.Action.Tool)
		}
		out = append(out, s)
	}
	return out
}
