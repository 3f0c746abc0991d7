// Package trade defines the DEX quote/swap port.
package trade

import (
	"context"

	"github.com/outlive-sh/outlive/internal/port/wallet"
)

// Quote is a priced swap route returned by the DEX aggregator.
type Quote struct {
	InMint      string `json:"in_mint"`
	OutMint     string `json:"out_mint"`
	InAmount    uint64 `json:"in_amount"`
	OutAmount   uint64 `json:"out_amount"`
	SlippageBps int    `json:"slippage_bps"`
	// RawQuote carries the provider's opaque quote payload needed to build
	// the swap transaction.
	RawQuote []byte `json:"raw_quote,omitempty"`
}

// SwapResult is the structured outcome of a swap attempt.
type SwapResult struct {
	Success   bool   `json:"success"`
	Signature string `json:"signature,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Provider quotes and executes token swaps.
type Provider interface {
	GetQuote(ctx context.Context, inMint, outMint string, amount uint64, slippageBps int) (*Quote, error)
	ExecuteSwap(ctx context.Context, w *wallet.Wallet, q *Quote) (*SwapResult, error)
}
