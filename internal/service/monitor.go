package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/outlive-sh/outlive/internal/domain/bounty"
	"github.com/outlive-sh/outlive/internal/port/bountysource"
	"github.com/outlive-sh/outlive/internal/port/database"
	"github.com/outlive-sh/outlive/internal/port/wallet"
)

// MonitorResult reports one bounty's monitoring outcome.
type MonitorResult struct {
	BountyID  string        `json:"bounty_id"`
	OldStatus bounty.Status `json:"old_status"`
	NewStatus bounty.Status `json:"new_status"`
	Changed   bool          `json:"changed"`
	Notes     []string      `json:"notes,omitempty"`
}

// MonitorService tracks active bounties against their sources and watches
// the wallet for incoming payments.
type MonitorService struct {
	store    database.Store
	sources  map[bounty.Source]bountysource.Source
	balances wallet.BalanceProvider
	wallet   *wallet.Wallet

	interCallDelay time.Duration
	tolerance      uint64

	// lastBalances is process-local; payments arriving before the first
	// snapshot cannot be detected.
	lastBalances *wallet.Balances

	now   func() time.Time
	sleep func(context.Context, time.Duration)
}

// NewMonitorService creates a MonitorService.
func NewMonitorService(store database.Store, sources []bountysource.Source, balances wallet.BalanceProvider, w *wallet.Wallet, interCallDelay time.Duration, tolerance uint64) *MonitorService {
	byName := make(map[bounty.Source]bountysource.Source, len(sources))
	for _, src := range sources {
		byName[src.Name()] = src
	}
	return &MonitorService{
		store:          store,
		sources:        byName,
		balances:       balances,
		wallet:         w,
		interCallDelay: interCallDelay,
		tolerance:      tolerance,
		now:            time.Now,
		sleep:          sleepCtx,
	}
}

// MonitorAll checks every claimed or submitted bounty against its source and
// writes back changed statuses. Per-bounty errors are captured in that
// bounty's notes and never abort the remaining checks.
func (s *MonitorService) MonitorAll(ctx context.Context) []MonitorResult {
	active := s.activeBounties(ctx)

	results := make([]MonitorResult, 0, len(active))
	for i := range active {
		if i > 0 {
			s.sleep(ctx, s.interCallDelay)
		}
		results = append(results, s.monitorOne(ctx, &active[i]))
	}
	return results
}

func (s *MonitorService) activeBounties(ctx context.Context) []bounty.Bounty {
	var active []bounty.Bounty
	for _, status := range []bounty.Status{bounty.StatusClaimed, bounty.StatusSubmitted} {
		st := status
		batch, err := s.store.GetBounties(ctx, database.BountyFilter{Status: &st})
		if err != nil {
			slog.Error("active bounty fetch failed", "status", st, "error", err)
			continue
		}
		active = append(active, batch...)
	}
	return active
}

func (s *MonitorService) monitorOne(ctx context.Context, b *bounty.Bounty) MonitorResult {
	result := MonitorResult{BountyID: b.ID, OldStatus: b.Status, NewStatus: b.Status}

	src, ok := s.sources[b.Source]
	if !ok {
		result.Notes = append(result.Notes, "no source adapter for "+string(b.Source))
		return result
	}

	signal, err := src.CheckStatus(ctx, b)
	if err != nil {
		result.Notes = append(result.Notes, "status check failed: "+err.Error())
		return result
	}

	next := nextStatus(b, signal)
	if next == b.Status {
		return result
	}

	if err := s.store.UpdateBountyStatus(ctx, b.ID, next, nil); err != nil {
		result.Notes = append(result.Notes, "status update failed: "+err.Error())
		return result
	}

	slog.Info("bounty status changed", "bounty", b.ID, "from", b.Status, "to", next)
	result.NewStatus = next
	result.Changed = true
	return result
}

// nextStatus maps source signals to a canonical status using source-specific
// rules.
func nextStatus(b *bounty.Bounty, signal *bountysource.StatusSignal) bounty.Status {
	switch b.Source {
	case bounty.SourceGitHub:
		// A merged PR means the work was accepted; a closed issue without a
		// merge still ends the bounty.
		if signal.Merged || signal.Closed {
			return bounty.StatusCompleted
		}
	case bounty.SourceWorkboard:
		if signal.Closed {
			return bounty.StatusCompleted
		}
		if signal.StatusText == "in_review" && b.Status == bounty.StatusClaimed {
			return bounty.StatusSubmitted
		}
	}
	return b.Status
}

// CurrentBalances fetches a fresh wallet snapshot without consuming the
// payment-detection baseline.
func (s *MonitorService) CurrentBalances(ctx context.Context) (*wallet.Balances, error) {
	return s.balances.GetBalance(ctx, s.wallet)
}

// CheckForPayments diffs the current balance snapshot against the previous
// one and emits detections for any increase. The first call only seeds the
// snapshot.
func (s *MonitorService) CheckForPayments(ctx context.Context) []bounty.PaymentDetection {
	current, err := s.balances.GetBalance(ctx, s.wallet)
	if err != nil {
		slog.Error("payment check balance fetch failed", "error", err)
		return nil
	}

	prev := s.lastBalances
	s.lastBalances = current
	if prev == nil {
		return nil
	}

	var detections []bounty.PaymentDetection

	if current.Stable > prev.Stable {
		diff := current.Stable - prev.Stable
		det := bounty.PaymentDetection{
			BountyID:   bounty.UnknownBountyID,
			Amount:     diff,
			Token:      "USDC",
			Timestamp:  s.now().UTC(),
			Confidence: bounty.PaymentConfidenceMedium,
		}
		if match := s.matchOutstanding(ctx, diff); match != "" {
			det.BountyID = match
			det.Confidence = bounty.PaymentConfidenceHigh
		}
		detections = append(detections, det)
	}

	if current.Native > prev.Native {
		// Native inflows are not expected as bounty payouts.
		detections = append(detections, bounty.PaymentDetection{
			BountyID:   bounty.UnknownBountyID,
			Amount:     current.Native - prev.Native,
			Token:      "SOL",
			Timestamp:  s.now().UTC(),
			Confidence: bounty.PaymentConfidenceLow,
		})
	}

	return detections
}

// matchOutstanding returns the id of a claimed or submitted bounty whose
// reward matches the diff within the configured tolerance.
func (s *MonitorService) matchOutstanding(ctx context.Context, diff uint64) string {
	for _, b := range s.activeBounties(ctx) {
		var delta uint64
		if b.RewardAmount > diff {
			delta = b.RewardAmount - diff
		} else {
			delta = diff - b.RewardAmount
		}
		if delta <= s.tolerance {
			return b.ID
		}
	}
	return ""
}

// sleepCtx sleeps for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
