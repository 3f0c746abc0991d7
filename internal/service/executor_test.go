package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/outlive-sh/outlive/internal/domain/bounty"
	"github.com/outlive-sh/outlive/internal/domain/plan"
)

// scriptedRunner fails on a chosen step index and records execution order.
type scriptedRunner struct {
	failAt  int // 1-based step number to fail, 0 = never
	calls   int
	visited []string
	output  map[plan.StepType]string
	panicAt int
}

func (r *scriptedRunner) RunStep(_ context.Context, _ *bounty.Bounty, step *plan.Step) (string, error) {
	r.calls++
	r.visited = append(r.visited, step.Name)
	if r.panicAt > 0 && r.calls == r.panicAt {
		panic("runner exploded")
	}
	if r.failAt > 0 && r.calls == r.failAt {
		return "", errors.New("tooling broke")
	}
	return r.output[step.Type], nil
}

func githubBounty() *bounty.Bounty {
	return &bounty.Bounty{
		ID:     "github:acme/api#7",
		Source: bounty.SourceGitHub,
		Title:  "Implement retries",
		Status: bounty.StatusClaimed,
	}
}

func evalFixture() *bounty.Evaluation {
	return &bounty.Evaluation{
		BountyID:       "github:acme/api#7",
		EstimatedHours: 8,
		EstimatedCost:  80_000_000,
	}
}

func TestBuildPlanGitHubTemplate(t *testing.T) {
	svc := NewExecutorService(&scriptedRunner{})
	p := svc.BuildPlan(githubBounty(), evalFixture())

	if len(p.Steps) != 7 {
		t.Fatalf("github plan has %d steps", len(p.Steps))
	}
	if p.Steps[0].Type != plan.StepResearch || p.Steps[6].Type != plan.StepSubmission {
		t.Errorf("unexpected step ordering: %v", p.Steps)
	}
	// every step after the first depends on its predecessor
	for i := 1; i < len(p.Steps); i++ {
		if len(p.Steps[i].DependsOn) != 1 || p.Steps[i].DependsOn[0] != p.Steps[i-1].ID {
			t.Errorf("step %d dependency wrong", i)
		}
	}
	if p.Steps[4].Estimated <= p.Steps[0].Estimated {
		t.Error("implementation should get the largest time share")
	}
}

func TestBuildPlanWorkboardTemplate(t *testing.T) {
	svc := NewExecutorService(&scriptedRunner{})
	b := &bounty.Bounty{ID: "workboard:t-1", Source: bounty.SourceWorkboard}
	p := svc.BuildPlan(b, evalFixture())
	if len(p.Steps) != 4 {
		t.Fatalf("workboard plan has %d steps", len(p.Steps))
	}
	if p.Steps[2].Type != plan.StepImplementation {
		t.Errorf("unexpected workboard template: %v", p.Steps)
	}
}

func TestExecuteSuccess(t *testing.T) {
	runner := &scriptedRunner{
		output: map[plan.StepType]string{plan.StepSubmission: "https://github.com/acme/api/pull/8"},
	}
	svc := NewExecutorService(runner)

	result := svc.Execute(context.Background(), githubBounty(), evalFixture())
	if !result.Success {
		t.Fatalf("execution failed: %s", result.Error)
	}
	if result.CompletedSteps != 7 {
		t.Errorf("completed = %d", result.CompletedSteps)
	}
	if result.SubmissionURL != "https://github.com/acme/api/pull/8" {
		t.Errorf("submission url = %s", result.SubmissionURL)
	}
	if !strings.Contains(result.Learnings, "completed all steps") {
		t.Errorf("learnings = %q", result.Learnings)
	}
}

// A failure at step 3 of 7 halts the plan: steps 4 onward never leave pending.
func TestExecuteHaltsAtFirstFailure(t *testing.T) {
	runner := &scriptedRunner{failAt: 3}
	svc := NewExecutorService(runner)

	result := svc.Execute(context.Background(), githubBounty(), evalFixture())
	if result.Success {
		t.Fatal("expected failure")
	}
	if runner.calls != 3 {
		t.Fatalf("runner called %d times, want 3", runner.calls)
	}
	if result.CompletedSteps != 2 {
		t.Errorf("completed = %d, want 2", result.CompletedSteps)
	}
	if !strings.Contains(result.Error, "tooling broke") {
		t.Errorf("error = %q", result.Error)
	}
	if !strings.Contains(result.Learnings, "failed at") {
		t.Errorf("learnings = %q", result.Learnings)
	}
}

// Execute never throws: a panicking runner becomes a failed result.
func TestExecuteRecoversPanic(t *testing.T) {
	runner := &scriptedRunner{panicAt: 2}
	svc := NewExecutorService(runner)

	result := svc.Execute(context.Background(), githubBounty(), evalFixture())
	if result.Success {
		t.Fatal("expected failure after panic")
	}
	if !strings.Contains(result.Error, "internal error") {
		t.Errorf("error = %q", result.Error)
	}
	if result.CompletedSteps != 1 {
		t.Errorf("completed = %d, want 1", result.CompletedSteps)
	}
}

func TestExecuteWallClockCost(t *testing.T) {
	runner := &scriptedRunner{}
	svc := NewExecutorService(runner)

	// 30 minutes of wall clock at 80M per 8h (10M/h) is 5M.
	times := []time.Time{
		time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC),
	}
	calls := 0
	svc.now = func() time.Time {
		t := times[calls%len(times)]
		calls++
		return t
	}

	result := svc.Execute(context.Background(), githubBounty(), evalFixture())
	if result.TotalTime != 30*time.Minute {
		t.Errorf("total time = %s", result.TotalTime)
	}
	if result.Cost != 5_000_000 {
		t.Errorf("cost = %d, want 5000000", result.Cost)
	}
}
