// Package turn defines the Turn domain entity: one think/act/observe cycle
// of the agent loop, persisted as an immutable append-only record.
package turn

import (
	"time"

	"github.com/google/uuid"
)

// Action records the single tool invocation a turn may carry.
type Action struct {
	Tool   string `json:"tool"`
	Input  string `json:"input"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Turn is one decision cycle's record. Fields are filled progressively during
// the cycle and the record is persisted atomically at cycle end; it is never
// mutated afterwards.
type Turn struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Thought     string    `json:"thought"`
	Action      *Action   `json:"action,omitempty"` // nil = no action taken
	Observation string    `json:"observation"`
	Reflection  string    `json:"reflection,omitempty"`
}

// New creates a Turn with a fresh ID and the current time.
func New() *Turn {
	return &Turn{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
	}
}

// Failed reports whether the turn's action (if any) ended in an error.
func (t *Turn) Failed() bool {
	return t.Action != nil && t.Action.Error != ""
}
