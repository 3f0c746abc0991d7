// Package solana provides thin JSON-RPC wrappers for the chain reads and the
// raw transaction submit the core depends on. Anything heavier (token account
// derivation, complex transaction assembly) stays outside this repository.
package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/outlive-sh/outlive/internal/resilience"
)

// Client is a minimal Solana JSON-RPC client.
type Client struct {
	rpcURL     string
	httpClient *http.Client
}

// NewClient creates a Client for the given RPC endpoint.
func NewClient(rpcURL string) *Client {
	return &Client{
		rpcURL: rpcURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// call performs one JSON-RPC request and unmarshals the result.
func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s read response: %w", method, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s: http %d: %s", method, resp.StatusCode, string(data))
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("%s unmarshal: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("%s: %w", method, envelope.Error)
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("%s unmarshal result: %w", method, err)
		}
	}
	return nil
}

// CurrentHeight returns the latest slot.
func (c *Client) CurrentHeight(ctx context.Context) (uint64, error) {
	var slot uint64
	if err := c.call(ctx, "getSlot", nil, &slot); err != nil {
		return 0, err
	}
	return slot, nil
}

// IsHealthy reports whether the node answers getHealth with "ok".
func (c *Client) IsHealthy(ctx context.Context) bool {
	var status string
	if err := c.call(ctx, "getHealth", nil, &status); err != nil {
		return false
	}
	return status == "ok"
}

// RecentBlockReference returns a recent blockhash, retrying with exponential
// backoff up to the given count.
func (c *Client) RecentBlockReference(ctx context.Context, retries int) (string, error) {
	var blockhash string
	err := resilience.Retry(ctx, retries, 500*time.Millisecond, func() error {
		var result struct {
			Value struct {
				Blockhash string `json:"blockhash"`
			} `json:"value"`
		}
		if err := c.call(ctx, "getLatestBlockhash", nil, &result); err != nil {
			return err
		}
		blockhash = result.Value.Blockhash
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("recent block reference: %w", err)
	}
	return blockhash, nil
}

// LamportBalance returns the native balance of an address.
func (c *Client) LamportBalance(ctx context.Context, address string) (uint64, error) {
	var result struct {
		Value uint64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", []any{address}, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

// TokenBalance returns the token amount of an SPL token account in its
// smallest unit.
func (c *Client) TokenBalance(ctx context.Context, tokenAccount string) (uint64, error) {
	if tokenAccount == "" {
		return 0, nil
	}
	var result struct {
		Value struct {
			Amount string `json:"amount"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getTokenAccountBalance", []any{tokenAccount}, &result); err != nil {
		return 0, err
	}
	var amount uint64
	if _, err := fmt.Sscan(result.Value.Amount, &amount); err != nil {
		return 0, fmt.Errorf("parse token amount %q: %w", result.Value.Amount, err)
	}
	return amount, nil
}

// SendRawTransaction submits a base64-encoded signed transaction and returns
// its signature.
func (c *Client) SendRawTransaction(ctx context.Context, txBase64 string) (string, error) {
	var sig string
	params := []any{txBase64, map[string]any{"encoding": "base64"}}
	if err := c.call(ctx, "sendTransaction", params, &sig); err != nil {
		return "", err
	}
	return sig, nil
}
