// Package wallet defines the wallet/identity and balance provider ports.
// Key storage and transaction signing live behind these interfaces; the core
// never touches raw key material.
package wallet

import (
	"context"
	"time"
)

// Signer signs a serialized transaction or message.
type Signer interface {
	Sign(msg []byte) ([]byte, error)
}

// Wallet is the loaded identity: a base58 public key plus its signer.
type Wallet struct {
	PublicKey string
	Signer    Signer
}

// Loader loads the agent's wallet. Implementations must return
// domain.ErrNoWallet when no keypair exists so startup can fail fast.
type Loader interface {
	LoadWallet() (*Wallet, error)
}

// Balances is one snapshot of the wallet's holdings.
type Balances struct {
	Native          uint64    `json:"native"` // lamports
	Stable          uint64    `json:"stable"` // USDC smallest unit
	NativeFormatted string    `json:"native_formatted"`
	StableFormatted string    `json:"stable_formatted"`
	Timestamp       time.Time `json:"timestamp"`
}

// BalanceProvider reads the wallet's current balances.
type BalanceProvider interface {
	GetBalance(ctx context.Context, w *Wallet) (*Balances, error)
}

// TransferResult is the structured outcome of a transfer attempt. Domain
// failures are reported in Error, not as a Go error.
type TransferResult struct {
	Success   bool   `json:"success"`
	Signature string `json:"signature,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Transferrer moves native or stable funds to a recipient address.
type Transferrer interface {
	Transfer(ctx context.Context, w *Wallet, recipient string, amount uint64) (*TransferResult, error)
}
