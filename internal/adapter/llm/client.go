// Package llm provides an HTTP client for an OpenAI-compatible
// chat-completions proxy.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/outlive-sh/outlive/internal/port/reasoning"
	"github.com/outlive-sh/outlive/internal/resilience"
)

// Completion requests are retried with exponential backoff before the
// primary/fallback model switch happens upstream.
const (
	completionAttempts  = 3
	completionRetryBase = 500 * time.Millisecond
)

// Client talks to an OpenAI-compatible proxy.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *resilience.Breaker

	attempts  int
	retryBase time.Duration
}

// NewClient creates a new completions client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		attempts:  completionAttempts,
		retryBase: completionRetryBase,
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

type completionRequest struct {
	Model       string              `json:"model"`
	Messages    []reasoning.Message `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends a chat completion request and returns the first choice's text.
func (c *Client) Complete(ctx context.Context, req reasoning.Request) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion: %w", err)
	}

	var resp []byte
	err = resilience.Retry(ctx, c.attempts, c.retryBase, func() error {
		var reqErr error
		resp, reqErr = c.doRequest(ctx, http.MethodPost, "/v1/chat/completions", body)
		return reqErr
	})
	if err != nil {
		return "", fmt.Errorf("completion %s: %w", req.Model, err)
	}

	var result completionResponse
	if err := json.Unmarshal(resp, &result); err != nil {
		return "", fmt.Errorf("unmarshal completion: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("completion %s: %s", req.Model, result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("completion %s: empty choices", req.Model)
	}
	return result.Choices[0].Message.Content, nil
}

// Health checks if the proxy answers.
func (c *Client) Health(ctx context.Context) (bool, error) {
	_, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	return err == nil, err
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
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
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}
	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}
