package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/outlive-sh/outlive/internal/adapter/otel"
	"github.com/outlive-sh/outlive/internal/config"
	"github.com/outlive-sh/outlive/internal/domain/bounty"
	"github.com/outlive-sh/outlive/internal/domain/survival"
	"github.com/outlive-sh/outlive/internal/port/database"
	"github.com/outlive-sh/outlive/internal/port/messagequeue"
)

// Base intervals per background task, scaled by the tier multiplier.
const (
	scanEvery    = 30 * time.Minute
	monitorEvery = 15 * time.Minute
	paymentEvery = 10 * time.Minute
	balanceEvery = 5 * time.Minute
	cleanupEvery = 24 * time.Hour
)

// Schedule carries the per-task last-run timestamps. The scheduler holds no
// hidden state: callers own the Schedule, pass it into each tick and keep
// the returned copy.
type Schedule struct {
	BountyScan    time.Time `json:"bounty_scan"`
	Monitor       time.Time `json:"monitor"`
	Payments      time.Time `json:"payments"`
	BalanceMetric time.Time `json:"balance_metric"`
	Cleanup       time.Time `json:"cleanup"`
}

// HeartbeatService runs the periodic background tasks: bounty scanning,
// bounty monitoring, payment detection, balance metrics and retention
// cleanup. Task failures are logged and retried on the next due tick.
type HeartbeatService struct {
	cfg       config.Config
	store     database.Store
	scraper   *ScraperService
	monitor   *MonitorService
	evaluator *EvaluatorService
	queue     messagequeue.Queue

	hub     Broadcaster
	metrics *otel.Metrics
	now     func() time.Time
}

// NewHeartbeatService creates the background task scheduler.
func NewHeartbeatService(
	cfg config.Config,
	store database.Store,
	scraper *ScraperService,
	monitor *MonitorService,
	evaluator *EvaluatorService,
	queue messagequeue.Queue,
) *HeartbeatService {
	return &HeartbeatService{
		cfg:       cfg,
		store:     store,
		scraper:   scraper,
		monitor:   monitor,
		evaluator: evaluator,
		queue:     queue,
		now:       time.Now,
	}
}

// SetBroadcaster attaches the dashboard push channel.
func (s *HeartbeatService) SetBroadcaster(b Broadcaster) { s.hub = b }

// SetMetrics attaches the OpenTelemetry instrument set.
func (s *HeartbeatService) SetMetrics(m *otel.Metrics) { s.metrics = m }

// tierMultiplier slows background work as funds shrink. Survival-critical
// tasks still run, just less often.
func tierMultiplier(t survival.Tier) time.Duration {
	switch t {
	case survival.TierNormal:
		return 1
	case survival.TierLowCompute:
		return 2
	case survival.TierCritical:
		return 4
	default:
		return 8
	}
}

// due reports whether a task last run at `last` should run now.
func due(now, last time.Time, every time.Duration, tier survival.Tier) bool {
	return now.Sub(last) >= every*tierMultiplier(tier)
}

// Tick runs every due task and returns the updated schedule. A task's
// timestamp advances even when the task fails, so a broken dependency is
// retried on cadence instead of every tick.
func (s *HeartbeatService) Tick(ctx context.Context, sched Schedule, tier survival.Tier) Schedule {
	now := s.now().UTC()

	if due(now, sched.BountyScan, scanEvery, tier) {
		sched.BountyScan = now
		s.runScan(ctx)
	}
	if due(now, sched.Monitor, monitorEvery, tier) {
		sched.Monitor = now
		s.runMonitor(ctx)
	}
	if due(now, sched.Payments, paymentEvery, tier) {
		sched.Payments = now
		s.runPayments(ctx)
	}
	if due(now, sched.BalanceMetric, balanceEvery, tier) {
		sched.BalanceMetric = now
		s.runBalanceMetric(ctx)
	}
	if due(now, sched.Cleanup, cleanupEvery, tier) {
		sched.Cleanup = now
		s.runCleanup(ctx)
	}
	return sched
}

// Run ticks the scheduler until the context is cancelled, re-deriving the
// tier each tick from the stored balance metric path via the monitor's
// balance provider. Interval is the finest task granularity.
func (s *HeartbeatService) Run(ctx context.Context, tierOf func(context.Context) survival.Tier) error {
	sched := Schedule{}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("heartbeat stopping")
			return ctx.Err()
		case <-ticker.C:
			sched = s.Tick(ctx, sched, tierOf(ctx))
		}
	}
}

func (s *HeartbeatService) runScan(ctx context.Context) {
	result, err := s.scraper.ScanAll(ctx)
	if err != nil {
		slog.Error("bounty scan failed", "error", err)
		return
	}
	slog.Info("bounty scan done", "fetched", result.Fetched, "stored", result.Stored, "source_errors", len(result.Errors))
	if s.metrics != nil {
		s.metrics.BountiesScanned.Add(ctx, int64(result.Stored))
	}
}

func (s *HeartbeatService) runMonitor(ctx context.Context) {
	results := s.monitor.MonitorAll(ctx)
	for _, r := range results {
		if !r.Changed {
			continue
		}
		slog.Info("bounty status changed", "bounty", r.BountyID, "from", r.OldStatus, "to", r.NewStatus)
		s.publish(ctx, messagequeue.SubjectBountyUpdated, r)

		// A completion is the learning signal for the skill vector.
		if r.NewStatus == bounty.StatusCompleted {
			if b, err := s.store.GetBounty(ctx, r.BountyID); err == nil {
				if err := s.evaluator.RecordSuccess(ctx, b); err != nil {
					slog.Warn("skill update failed", "bounty", r.BountyID, "error", err)
				}
			}
		}
	}
}

func (s *HeartbeatService) runPayments(ctx context.Context) {
	payments := s.monitor.CheckForPayments(ctx)
	for _, p := range payments {
		slog.Info("payment detected", "bounty", p.BountyID, "amount", p.Amount, "token", p.Token, "confidence", p.Confidence)
		s.publish(ctx, messagequeue.SubjectPaymentDetected, p)

		if p.Token == "USDC" {
			if err := s.store.StoreMetric(ctx, "earnings", float64(p.Amount)/1e6); err != nil {
				slog.Warn("earnings metric failed", "error", err)
			}
		}
		if s.metrics != nil {
			s.metrics.PaymentsDetected.Add(ctx, 1)
		}
	}
}

func (s *HeartbeatService) runBalanceMetric(ctx context.Context) {
	bal, err := s.monitor.CurrentBalances(ctx)
	if err != nil {
		slog.Warn("balance metric fetch failed", "error", err)
		return
	}
	if err := s.store.StoreMetric(ctx, "balance_stable", float64(bal.Stable)); err != nil {
		slog.Warn("balance metric store failed", "error", err)
	}
	if s.metrics != nil {
		s.metrics.StableBalance.Record(ctx, int64(bal.Stable))
	}
}

func (s *HeartbeatService) runCleanup(ctx context.Context) {
	deleted, err := s.store.Cleanup(ctx, s.cfg.Monitor.CleanupDays)
	if err != nil {
		slog.Error("retention cleanup failed", "error", err)
		return
	}
	slog.Info("retention cleanup done", "deleted", deleted)
}

func (s *HeartbeatService) publish(ctx context.Context, subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		slog.Warn("event publish failed", "subject", subject, "error", err)
	}
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, subject, payload)
	}
}
