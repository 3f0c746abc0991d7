package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/outlive-sh/outlive/internal/domain/bounty"
	"github.com/outlive-sh/outlive/internal/domain/plan"
	"github.com/outlive-sh/outlive/internal/port/reasoning"
)

// ReasoningStepRunner performs plan steps by delegating to the reasoning
// backend. Each step gets the bounty brief and its place in the plan.
type ReasoningStepRunner struct {
	reasoner  reasoning.Client
	model     string
	maxTokens int
}

// NewReasoningStepRunner creates the production StepRunner.
func NewReasoningStepRunner(reasoner reasoning.Client, model string, maxTokens int) *ReasoningStepRunner {
	return &ReasoningStepRunner{reasoner: reasoner, model: model, maxTokens: maxTokens}
}

// RunStep executes one plan step. The response text is the step's output;
// an empty response counts as a failure so the executor halts instead of
// submitting hollow work.
func (r *ReasoningStepRunner) RunStep(ctx context.Context, b *bounty.Bounty, step *plan.Step) (string, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "You are working on this bounty:\nTitle: %s\nURL: %s\n", b.Title, b.URL)
	if b.Description != "" {
		fmt.Fprintf(&prompt, "Description: %s\n", b.Description)
	}
	fmt.Fprintf(&prompt, "\nCurrent step (%s): %s\n", step.Type, step.Name)
	prompt.WriteString("\nPerform this step and report the concrete result. For a submission step, include the submission URL.")

	response, err := r.reasoner.Complete(ctx, reasoning.Request{
		Messages: []reasoning.Message{
			{Role: reasoning.RoleSystem, Content: "You are a diligent software contractor. Report only what you actually did."},
			{Role: reasoning.RoleUser, Content: prompt.String()},
		},
		Model:       r.model,
		MaxTokens:   r.maxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("step %q: %w", step.Name, err)
	}
	if strings.TrimSpace(response) == "" {
		return "", fmt.Errorf("step %q produced no output", step.Name)
	}
	return response, nil
}
