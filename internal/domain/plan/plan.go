// Package plan defines the ExecutionPlan domain entity for bounty execution.
// Plans run strictly sequentially in declared order and halt at the first
// failed step.
package plan

import (
	"time"

	"github.com/google/uuid"
)

// StepType classifies the work a step performs.
type StepType string

const (
	StepResearch       StepType = "research"
	StepSetup          StepType = "setup"
	StepImplementation StepType = "implementation"
	StepTesting        StepType = "testing"
	StepSubmission     StepType = "submission"
)

// StepStatus represents the lifecycle state of an individual step.
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusFailed     StepStatus = "failed"
)

// IsTerminal returns true if the step is in a final state.
func (s StepStatus) IsTerminal() bool {
	return s == StepStatusCompleted || s == StepStatusFailed
}

// Step represents one unit of work in an execution plan.
type Step struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Type      StepType      `json:"type"`
	DependsOn []string      `json:"depends_on,omitempty"` // prior step IDs
	Estimated time.Duration `json:"estimated"`
	Status    StepStatus    `json:"status"`
	Error     string        `json:"error,omitempty"`
}

// ExecutionPlan organizes the steps derived from an evaluated bounty.
type ExecutionPlan struct {
	ID        string    `json:"id"`
	BountyID  string    `json:"bounty_id"`
	Steps     []Step    `json:"steps"`
	CreatedAt time.Time `json:"created_at"`
}

// New creates an empty plan for a bounty.
func New(bountyID string) *ExecutionPlan {
	return &ExecutionPlan{
		ID:        uuid.NewString(),
		BountyID:  bountyID,
		CreatedAt: time.Now().UTC(),
	}
}

// AddStep appends a step depending on the previously added step, preserving
// the strictly sequential execution order.
func (p *ExecutionPlan) AddStep(name string, typ StepType, estimated time.Duration) {
	step := Step{
		ID:        uuid.NewString(),
		Name:      name,
		Type:      typ,
		Estimated: estimated,
		Status:    StepStatusPending,
	}
	if n := len(p.Steps); n > 0 {
		step.DependsOn = []string{p.Steps[n-1].ID}
	}
	p.Steps = append(p.Steps, step)
}

// CompletedSteps returns how many steps finished successfully.
func (p *ExecutionPlan) CompletedSteps() int {
	n := 0
	for i := range p.Steps {
		if p.Steps[i].Status == StepStatusCompleted {
			n++
		}
	}
	return n
}
