// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Close shuts down the queue connection.
	Close() error
}

// Subject constants for the agent's event bus.
const (
	SubjectTurnCompleted   = "turns.completed"
	SubjectBountyUpdated   = "bounties.updated"
	SubjectPaymentDetected = "payments.detected"
	SubjectTierChanged     = "survival.tier"
)

// TurnCompletedEvent is the payload published on SubjectTurnCompleted.
type TurnCompletedEvent struct {
	TurnID  string `json:"turn_id"`
	Thought string `json:"thought"`
	Tool    string `json:"tool,omitempty"`
	Failed  bool   `json:"failed"`
}

// TierChangedEvent is the payload published on SubjectTierChanged.
type TierChangedEvent struct {
	Previous string `json:"previous"`
	Current  string `json:"current"`
	Balance  uint64 `json:"balance"`
}
