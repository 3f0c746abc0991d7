// Package database defines the database store port (interface).
package database

import (
	"context"
	"time"

	"github.com/outlive-sh/outlive/internal/domain/bounty"
	"github.com/outlive-sh/outlive/internal/domain/turn"
)

// Stats aggregates turn and metric history since a point in time.
type Stats struct {
	TurnCount    int     `json:"turn_count"`
	FailedTurns  int     `json:"failed_turns"`
	TotalEarned  float64 `json:"total_earned"`  // sum of "earnings" metric
	MetricPoints int     `json:"metric_points"` // number of recorded metric samples
}

// BountyFilter narrows GetBounties. Nil fields match everything.
type BountyFilter struct {
	Status *bounty.Status
	Source *bounty.Source
	Limit  int
}

// Store is the port interface for the persistent state of the agent:
// the append-only turn log, the canonical bounty records, free-form agent
// state blobs, and time-series metrics.
type Store interface {
	// Turns
	StoreTurn(ctx context.Context, t *turn.Turn) error
	GetRecentTurns(ctx context.Context, n int) ([]turn.Turn, error)
	GetFirstTurn(ctx context.Context) (*turn.Turn, error)

	// Bounties
	GetBounties(ctx context.Context, filter BountyFilter) ([]bounty.Bounty, error)
	GetBounty(ctx context.Context, id string) (*bounty.Bounty, error)
	StoreBounties(ctx context.Context, bounties []bounty.Bounty) error
	UpdateBountyStatus(ctx context.Context, id string, status bounty.Status, claimedAt *time.Time) error

	// Agent state (skill vector, counters, …)
	StoreState(ctx context.Context, id, stateType string, data []byte) error
	GetState(ctx context.Context, id string) ([]byte, error)

	// Metrics
	StoreMetric(ctx context.Context, name string, value float64) error
	GetStats(ctx context.Context, since time.Time) (*Stats, error)

	// Cleanup removes turns and metrics older than the given number of days
	// and returns how many rows were deleted.
	Cleanup(ctx context.Context, days int) (int64, error)
}
