package solana

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mr-tron/base58"

	"github.com/outlive-sh/outlive/internal/domain"
	"github.com/outlive-sh/outlive/internal/port/wallet"
)

// Keypair wraps an ed25519 private key with its base58 public address.
type Keypair struct {
	priv   ed25519.PrivateKey
	pubkey string
}

// PublicKey returns the base58-encoded public key.
func (k *Keypair) PublicKey() string { return k.pubkey }

// Sign signs the given message bytes.
func (k *Keypair) Sign(message []byte) ([]byte, error) {
	return ed25519.Sign(k.priv, message), nil
}

// FileLoader loads a keypair from a JSON byte-array file, the format the
// standard CLI tooling writes.
type FileLoader struct {
	Path string
}

// LoadWallet reads and parses the keypair file. A missing file maps to
// domain.ErrNoWallet so callers can degrade instead of crashing.
func (l *FileLoader) LoadWallet() (*wallet.Wallet, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNoWallet
		}
		return nil, fmt.Errorf("read keypair %s: %w", l.Path, err)
	}

	var raw []byte
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse keypair %s: %w", l.Path, err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("keypair %s: expected %d bytes, got %d", l.Path, ed25519.PrivateKeySize, len(raw))
	}

	priv := ed25519.PrivateKey(raw)
	pub := priv.Public().(ed25519.PublicKey)
	kp := &Keypair{priv: priv, pubkey: base58.Encode(pub)}
	return &wallet.Wallet{PublicKey: kp.pubkey, Signer: kp}, nil
}
