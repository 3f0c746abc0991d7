// Package jupiter implements the trade port against the Jupiter aggregator's
// quote and swap endpoints.
package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/outlive-sh/outlive/internal/port/trade"
	"github.com/outlive-sh/outlive/internal/port/wallet"
	"github.com/outlive-sh/outlive/internal/resilience"
)

// Submitter submits a base64-encoded signed transaction to the chain.
type Submitter interface {
	SendRawTransaction(ctx context.Context, txBase64 string) (string, error)
}

// Client talks to a Jupiter-compatible aggregator API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.Breaker
	submitter  Submitter
}

// NewClient creates a Client. The breaker guards both the quote and swap
// endpoints together since they share the upstream.
func NewClient(baseURL string, breaker *resilience.Breaker, submitter Submitter) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		breaker:    breaker,
		submitter:  submitter,
	}
}

// GetQuote fetches a priced route for the given pair and amount.
func (c *Client) GetQuote(ctx context.Context, inMint, outMint string, amount uint64, slippageBps int) (*trade.Quote, error) {
	params := url.Values{}
	params.Set("inputMint", inMint)
	params.Set("outputMint", outMint)
	params.Set("amount", strconv.FormatUint(amount, 10))
	params.Set("slippageBps", strconv.Itoa(slippageBps))

	raw, err := c.doRequest(ctx, http.MethodGet, "/quote?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("quote %s->%s: %w", inMint, outMint, err)
	}

	var resp struct {
		InAmount  string `json:"inAmount"`
		OutAmount string `json:"outAmount"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("parse quote: %w", err)
	}
	outAmount, err := strconv.ParseUint(resp.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse out amount %q: %w", resp.OutAmount, err)
	}

	return &trade.Quote{
		InMint:      inMint,
		OutMint:     outMint,
		InAmount:    amount,
		OutAmount:   outAmount,
		SlippageBps: slippageBps,
		RawQuote:    raw,
	}, nil
}

// ExecuteSwap asks the aggregator to build the swap transaction, signs it and
// submits it. Failures after the quote stage are reported in the result.
func (c *Client) ExecuteSwap(ctx context.Context, w *wallet.Wallet, q *trade.Quote) (*trade.SwapResult, error) {
	body, err := json.Marshal(map[string]any{
		"quoteResponse": json.RawMessage(q.RawQuote),
		"userPublicKey": w.PublicKey,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal swap request: %w", err)
	}

	raw, err := c.doRequest(ctx, http.MethodPost, "/swap", body)
	if err != nil {
		return &trade.SwapResult{Error: err.Error()}, nil
	}

	var resp struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return &trade.SwapResult{Error: fmt.Sprintf("parse swap response: %v", err)}, nil
	}

	signed, err := signTransaction(resp.SwapTransaction, w.Signer)
	if err != nil {
		return &trade.SwapResult{Error: err.Error()}, nil
	}

	sig, err := c.submitter.SendRawTransaction(ctx, signed)
	if err != nil {
		return &trade.SwapResult{Error: err.Error()}, nil
	}
	return &trade.SwapResult{Success: true, Signature: sig}, nil
}

// signTransaction fills the fee payer signature slot of a serialized
// transaction returned by the aggregator.
func signTransaction(txBase64 string, signer wallet.Signer) (string, error) {
	tx, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return "", fmt.Errorf("decode swap transaction: %w", err)
	}

	sigCount, offset, err := readCompactU16(tx)
	if err != nil {
		return "", fmt.Errorf("swap transaction: %w", err)
	}
	msgStart := offset + sigCount*64
	if sigCount < 1 || len(tx) <= msgStart {
		return "", fmt.Errorf("swap transaction: malformed signature table")
	}

	sig, err := signer.Sign(tx[msgStart:])
	if err != nil {
		return "", fmt.Errorf("sign swap: %w", err)
	}
	copy(tx[offset:offset+64], sig)
	return base64.StdEncoding.EncodeToString(tx), nil
}

// readCompactU16 decodes a shortvec length prefix. Returns the value and the
// number of bytes consumed.
func readCompactU16(data []byte) (int, int, error) {
	var value, shift uint
	for i := 0; i < 3; i++ {
		if i >= len(data) {
			return 0, 0, fmt.Errorf("truncated length prefix")
		}
		b := data[i]
		value |= uint(b&0x7f) << shift
		if b&0x80 == 0 {
			return int(value), i + 1, nil
		}
		shift += 7
	}
	return 0, 0, fmt.Errorf("length prefix too long")
}

// doRequest performs one breaker-guarded HTTP call and returns the body.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	err := c.breaker.Execute(func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
		}
		result = data
		return nil
	})
	return result, err
}
