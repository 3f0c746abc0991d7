// Package bounty defines the Bounty domain entity and its derived types:
// evaluations, the agent skill vector, and payment detections.
package bounty

import (
	"errors"
	"time"
)

// Source identifies the external platform a bounty was discovered on.
type Source string

const (
	// SourceGitHub covers bounty-labeled issues on code repositories.
	SourceGitHub Source = "github"
	// SourceWorkboard covers listing-platform task boards.
	SourceWorkboard Source = "workboard"
)

// Status represents the lifecycle state of a bounty.
type Status string

const (
	StatusOpen      Status = "open"
	StatusClaimed   Status = "claimed"
	StatusSubmitted Status = "submitted"
	StatusCompleted Status = "completed"
)

// forwardRank orders statuses for monotonic-forward transition checks.
func (s Status) forwardRank() int {
	switch s {
	case StatusOpen:
		return 0
	case StatusClaimed:
		return 1
	case StatusSubmitted:
		return 2
	case StatusCompleted:
		return 3
	}
	return -1
}

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool { return s == StatusCompleted }

// CanTransition reports whether a status change is allowed. Transitions move
// strictly forward, with one exception: a re-scan may revert claimed back to
// open when the upstream listing no longer shows the claim. Completed is
// terminal.
func CanTransition(from, to Status, rescan bool) bool {
	if from.IsTerminal() {
		return false
	}
	if from == StatusClaimed && to == StatusOpen {
		return rescan
	}
	return to.forwardRank() > from.forwardRank()
}

// Bounty is a discovered income opportunity. The bounty store owns the
// canonical copy; in-memory values are snapshots.
type Bounty struct {
	ID           string            `json:"id"` // source-prefixed, e.g. "github:owner/repo#123"
	Source       Source            `json:"source"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	RewardAmount uint64            `json:"reward_amount"` // smallest currency unit
	RewardToken  string            `json:"reward_token"`
	Deadline     *time.Time        `json:"deadline,omitempty"`
	URL          string            `json:"url"`
	Skills       []string          `json:"skills"`
	Status       Status            `json:"status"`
	DiscoveredAt time.Time         `json:"discovered_at"`
	ClaimedAt    *time.Time        `json:"claimed_at,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Validate checks that a bounty is well-formed before storage.
func (b *Bounty) Validate() error {
	if b.ID == "" {
		return errors.New("bounty id is required")
	}
	if b.Source == "" {
		return errors.New("bounty source is required")
	}
	if b.Title == "" {
		return errors.New("bounty title is required")
	}
	if b.Status == "" {
		return errors.New("bounty status is required")
	}
	return nil
}

// DaysUntilDeadline returns the days remaining, or false when no deadline is
// set. Negative values mean the deadline has passed.
func (b *Bounty) DaysUntilDeadline(now time.Time) (float64, bool) {
	if b.Deadline == nil {
		return 0, false
	}
	return b.Deadline.Sub(now).Hours() / 24, true
}
