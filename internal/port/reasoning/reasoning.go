// Package reasoning defines the port for the language-model backend.
package reasoning

import "context"

// Role values follow the chat-completions convention.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one chat message sent to the reasoning backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request bundles a completion call's parameters.
type Request struct {
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float64
}

// Client is the port interface for the reasoning backend.
type Client interface {
	// Complete returns the model's text response.
	Complete(ctx context.Context, req Request) (string, error)
}
