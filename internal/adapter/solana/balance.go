package solana

import (
	"context"
	"fmt"
	"time"

	"github.com/outlive-sh/outlive/internal/port/wallet"
)

const (
	lamportsPerSOL = 1_000_000_000
	usdcDecimals   = 1_000_000
)

// BalanceProvider reads native and stable balances over RPC.
type BalanceProvider struct {
	client           *Client
	usdcTokenAccount string
}

// NewBalanceProvider creates a provider. usdcTokenAccount may be empty, in
// which case the stable balance reads as zero.
func NewBalanceProvider(client *Client, usdcTokenAccount string) *BalanceProvider {
	return &BalanceProvider{client: client, usdcTokenAccount: usdcTokenAccount}
}

// GetBalance fetches both balances for the wallet's address.
func (p *BalanceProvider) GetBalance(ctx context.Context, w *wallet.Wallet) (*wallet.Balances, error) {
	native, err := p.client.LamportBalance(ctx, w.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("native balance: %w", err)
	}
	stable, err := p.client.TokenBalance(ctx, p.usdcTokenAccount)
	if err != nil {
		return nil, fmt.Errorf("stable balance: %w", err)
	}
	return &wallet.Balances{
		Native:          native,
		Stable:          stable,
		NativeFormatted: FormatSOL(native),
		StableFormatted: FormatUSDC(stable),
		Timestamp:       time.Now().UTC(),
	}, nil
}

// FormatSOL renders lamports as a SOL amount.
func FormatSOL(lamports uint64) string {
	return fmt.Sprintf("%.4f SOL", float64(lamports)/lamportsPerSOL)
}

// FormatUSDC renders the smallest USDC unit as a dollar amount.
func FormatUSDC(amount uint64) string {
	return fmt.Sprintf("%.2f USDC", float64(amount)/usdcDecimals)
}
