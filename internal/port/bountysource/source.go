// Package bountysource defines the port for external bounty listing sources.
package bountysource

import (
	"context"

	"github.com/outlive-sh/outlive/internal/domain/bounty"
)

// StatusSignal carries the raw state signals a source reports for a bounty.
// Mapping signals to a canonical status is source-specific and happens in the
// monitor.
type StatusSignal struct {
	Closed     bool   `json:"closed"`
	Merged     bool   `json:"merged"`
	StatusText string `json:"status_text,omitempty"`
}

// Source is one external bounty platform, adapted into the canonical Bounty
// shape by its implementation.
type Source interface {
	// Name returns the canonical source identifier.
	Name() bounty.Source

	// Fetch returns the source's current open listings.
	Fetch(ctx context.Context) ([]bounty.Bounty, error)

	// CheckStatus queries the source for a bounty's current state signals.
	CheckStatus(ctx context.Context, b *bounty.Bounty) (*StatusSignal, error)
}
