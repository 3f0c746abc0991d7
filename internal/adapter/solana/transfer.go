package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/outlive-sh/outlive/internal/port/wallet"
)

// systemProgramID is the native system program address.
const systemProgramID = "11111111111111111111111111111111"

// systemTransferIndex is the instruction index of SystemProgram::Transfer.
const systemTransferIndex = 2

// blockhashRetries bounds the backoff loop when fetching a recent blockhash.
const blockhashRetries = 3

// Transferrer builds, signs and submits native lamport transfers. Token
// transfers are out of scope; stable funds only move through swaps.
type Transferrer struct {
	client *Client
}

// NewTransferrer creates a Transferrer on top of the RPC client.
func NewTransferrer(client *Client) *Transferrer {
	return &Transferrer{client: client}
}

// Transfer sends lamports to the recipient. Submission failures are reported
// in the result so the caller can record them as observations.
func (t *Transferrer) Transfer(ctx context.Context, w *wallet.Wallet, recipient string, amount uint64) (*wallet.TransferResult, error) {
	blockhash, err := t.client.RecentBlockReference(ctx, blockhashRetries)
	if err != nil {
		return &wallet.TransferResult{Error: err.Error()}, nil
	}

	message, err := buildTransferMessage(w.PublicKey, recipient, blockhash, amount)
	if err != nil {
		return &wallet.TransferResult{Error: err.Error()}, nil
	}

	sig, err := w.Signer.Sign(message)
	if err != nil {
		return &wallet.TransferResult{Error: fmt.Sprintf("sign: %v", err)}, nil
	}

	var tx bytes.Buffer
	writeCompactU16(&tx, 1)
	tx.Write(sig)
	tx.Write(message)

	txSig, err := t.client.SendRawTransaction(ctx, base64.StdEncoding.EncodeToString(tx.Bytes()))
	if err != nil {
		return &wallet.TransferResult{Error: err.Error()}, nil
	}
	return &wallet.TransferResult{Success: true, Signature: txSig}, nil
}

// buildTransferMessage serializes a legacy message carrying one system
// transfer instruction. Header: one signer, one read-only unsigned account
// (the program).
func buildTransferMessage(from, to, blockhash string, lamports uint64) ([]byte, error) {
	fromKey, err := decodeKey(from)
	if err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}
	toKey, err := decodeKey(to)
	if err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}
	programKey, err := decodeKey(systemProgramID)
	if err != nil {
		return nil, err
	}
	hash, err := decodeKey(blockhash)
	if err != nil {
		return nil, fmt.Errorf("blockhash: %w", err)
	}

	var msg bytes.Buffer
	msg.Write([]byte{1, 0, 1})
	writeCompactU16(&msg, 3)
	msg.Write(fromKey)
	msg.Write(toKey)
	msg.Write(programKey)
	msg.Write(hash)

	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], systemTransferIndex)
	binary.LittleEndian.PutUint64(data[4:12], lamports)

	writeCompactU16(&msg, 1)
	msg.WriteByte(2) // program id index
	writeCompactU16(&msg, 2)
	msg.Write([]byte{0, 1}) // from, to
	writeCompactU16(&msg, len(data))
	msg.Write(data)

	return msg.Bytes(), nil
}

func decodeKey(encoded string) ([]byte, error) {
	key, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", encoded, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key %q: expected 32 bytes, got %d", encoded, len(key))
	}
	return key, nil
}

// writeCompactU16 writes the shortvec length prefix used by the wire format.
func writeCompactU16(buf *bytes.Buffer, n int) {
	v := uint16(n)
	for {
		if v < 0x80 {
			buf.WriteByte(byte(v))
			return
		}
		buf.WriteByte(byte(v&0x7f | 0x80))
		v >>= 7
	}
}
