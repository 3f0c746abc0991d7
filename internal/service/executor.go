package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/outlive-sh/outlive/internal/domain/bounty"
	"github.com/outlive-sh/outlive/internal/domain/plan"
)

// ExecutionResult is the outcome of running one bounty's plan.
type ExecutionResult struct {
	BountyID       string        `json:"bounty_id"`
	Success        bool          `json:"success"`
	SubmissionURL  string        `json:"submission_url,omitempty"`
	CompletedSteps int           `json:"completed_steps"`
	TotalTime      time.Duration `json:"total_time"`
	Cost           uint64        `json:"cost"` // smallest currency unit
	Learnings      string        `json:"learnings"`
	Error          string        `json:"error,omitempty"`
}

// StepRunner performs the actual work of one plan step. The production
// runner shells out to the agent's tools; tests substitute a scripted one.
type StepRunner interface {
	RunStep(ctx context.Context, b *bounty.Bounty, step *plan.Step) (string, error)
}

// StepRunnerFunc adapts a function to the StepRunner interface.
type StepRunnerFunc func(ctx context.Context, b *bounty.Bounty, step *plan.Step) (string, error)

func (f StepRunnerFunc) RunStep(ctx context.Context, b *bounty.Bounty, step *plan.Step) (string, error) {
	return f(ctx, b, step)
}

// Proportional duration split per step type, as a share of the evaluation's
// estimated hours.
var stepShare = map[plan.StepType]float64{
	plan.StepResearch:       0.10,
	plan.StepSetup:          0.15,
	plan.StepImplementation: 0.45,
	plan.StepTesting:        0.20,
	plan.StepSubmission:     0.10,
}

// ExecutorService builds and runs execution plans for claimed bounties. It
// never returns an error to its caller; every failure mode is folded into the
// ExecutionResult.
type ExecutorService struct {
	runner StepRunner
	now    func() time.Time
}

// NewExecutorService creates an ExecutorService.
func NewExecutorService(runner StepRunner) *ExecutorService {
	return &ExecutorService{runner: runner, now: time.Now}
}

// BuildPlan derives a step plan from the bounty's source. Step durations are
// proportional splits of the evaluation's estimated hours.
func (s *ExecutorService) BuildPlan(b *bounty.Bounty, ev *bounty.Evaluation) *plan.ExecutionPlan {
	p := plan.New(b.ID)
	total := time.Duration(ev.EstimatedHours * float64(time.Hour))

	add := func(name string, typ plan.StepType) {
		p.AddStep(name, typ, time.Duration(float64(total)*stepShare[typ]))
	}

	switch b.Source {
	case bounty.SourceGitHub:
		add("research the issue and its repository", plan.StepResearch)
		add("clone the repository", plan.StepSetup)
		add("analyze the affected code", plan.StepResearch)
		add("create a working branch", plan.StepSetup)
		add("implement the change", plan.StepImplementation)
		add("run the test suite", plan.StepTesting)
		add("submit a pull request", plan.StepSubmission)
	default:
		add("research the task brief", plan.StepResearch)
		add("download the brief and assets", plan.StepSetup)
		add("execute the work", plan.StepImplementation)
		add("prepare and upload the submission", plan.StepSubmission)
	}
	return p
}

// Execute runs the plan strictly in order, halting at the first failed step.
// It never propagates an error; panics and step errors become a failed result.
func (s *ExecutorService) Execute(ctx context.Context, b *bounty.Bounty, ev *bounty.Evaluation) (result ExecutionResult) {
	start := s.now()
	p := s.BuildPlan(b, ev)

	result = ExecutionResult{BountyID: b.ID}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("executor panic recovered", "bounty", b.ID, "panic", r)
			result.Success = false
			result.Error = fmt.Sprintf("internal error: %v", r)
		}
		result.CompletedSteps = p.CompletedSteps()
		result.TotalTime = s.now().Sub(start)
		result.Cost = s.costFor(result.TotalTime, ev)
		result.Learnings = learnings(p, result.Success)
	}()

	for i := range p.Steps {
		step := &p.Steps[i]
		step.Status = plan.StepStatusInProgress
		slog.Info("executing step", "bounty", b.ID, "step", step.Name, "type", step.Type)

		output, err := s.runner.RunStep(ctx, b, step)
		if err != nil {
			step.Status = plan.StepStatusFailed
			step.Error = err.Error()
			result.Success = false
			result.Error = fmt.Sprintf("step %q failed: %v", step.Name, err)
			return result
		}

		step.Status = plan.StepStatusCompleted
		if step.Type == plan.StepSubmission && output != "" {
			result.SubmissionURL = output
		}
	}

	result.Success = true
	return result
}

// costFor converts elapsed wall-clock minutes into currency using the
// evaluation's hours-to-cost ratio. It reflects planned burn rate, not cost
// actually incurred.
func (s *ExecutorService) costFor(elapsed time.Duration, ev *bounty.Evaluation) uint64 {
	if ev.EstimatedHours <= 0 {
		return 0
	}
	perMinute := float64(ev.EstimatedCost) / (ev.EstimatedHours * 60)
	return uint64(math.Round(elapsed.Minutes() * perMinute))
}

// learnings renders a deterministic summary of the run keyed off the outcome
// and which step types completed.
func learnings(p *plan.ExecutionPlan, success bool) string {
	done := map[plan.StepType]bool{}
	var failedStep string
	for i := range p.Steps {
		switch p.Steps[i].Status {
		case plan.StepStatusCompleted:
			done[p.Steps[i].Type] = true
		case plan.StepStatusFailed:
			failedStep = p.Steps[i].Name
		}
	}

	types := make([]string, 0, len(done))
	for _, typ := range []plan.StepType{plan.StepResearch, plan.StepSetup, plan.StepImplementation, plan.StepTesting, plan.StepSubmission} {
		if done[typ] {
			types = append(types, string(typ))
		}
	}

	if success {
		return fmt.Sprintf("completed all steps (%s); the plan template fit this bounty", strings.Join(types, ", "))
	}
	if len(types) == 0 {
		return fmt.Sprintf("failed at %q before completing any step; re-evaluate feasibility before retrying", failedStep)
	}
	return fmt.Sprintf("completed %s but failed at %q; future attempts should budget more for that phase", strings.Join(types, ", "), failedStep)
}
