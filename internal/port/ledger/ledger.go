// Package ledger defines the blockchain read-side port.
package ledger

import "context"

// Client exposes the few chain reads the core needs.
type Client interface {
	// CurrentHeight returns the latest block height (slot).
	CurrentHeight(ctx context.Context) (uint64, error)

	// IsHealthy reports whether the RPC node considers itself healthy.
	IsHealthy(ctx context.Context) bool

	// RecentBlockReference returns a recent blockhash, retrying up to the
	// given count with exponential backoff.
	RecentBlockReference(ctx context.Context, retries int) (string, error)
}
