package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/outlive-sh/outlive/internal/adapter/otel"
	"github.com/outlive-sh/outlive/internal/config"
	"github.com/outlive-sh/outlive/internal/domain/agentstate"
	"github.com/outlive-sh/outlive/internal/domain/survival"
	"github.com/outlive-sh/outlive/internal/domain/tool"
	"github.com/outlive-sh/outlive/internal/domain/turn"
	"github.com/outlive-sh/outlive/internal/port/database"
	"github.com/outlive-sh/outlive/internal/port/messagequeue"
	"github.com/outlive-sh/outlive/internal/port/reasoning"
)

// Broadcaster pushes events to connected dashboard clients. The websocket
// hub satisfies it; a nil broadcaster disables pushes.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}

// LoopService runs the think/act/observe decision loop. One cycle builds the
// context snapshot, asks the reasoning backend for a thought, dispatches at
// most one tool call and persists the turn. Cycle errors never escape Run;
// they are logged and the loop backs off.
type LoopService struct {
	cfg      config.Config
	contexts *ContextService
	defense  *DefenseService
	reasoner reasoning.Client
	tools    *ToolService
	store    database.Store
	queue    messagequeue.Queue

	hub     Broadcaster
	metrics *otel.Metrics

	running  atomic.Bool
	lastTier atomic.Value // survival.Tier
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration)
}

// NewLoopService creates the decision loop service.
func NewLoopService(
	cfg config.Config,
	contexts *ContextService,
	defense *DefenseService,
	reasoner reasoning.Client,
	tools *ToolService,
	store database.Store,
	queue messagequeue.Queue,
) *LoopService {
	s := &LoopService{
		cfg:      cfg,
		contexts: contexts,
		defense:  defense,
		reasoner: reasoner,
		tools:    tools,
		store:    store,
		queue:    queue,
		now:      time.Now,
		sleep:    sleepCtx,
	}
	return s
}

// SetBroadcaster attaches the dashboard push channel.
func (s *LoopService) SetBroadcaster(b Broadcaster) { s.hub = b }

// SetMetrics attaches the OpenTelemetry instrument set.
func (s *LoopService) SetMetrics(m *otel.Metrics) { s.metrics = m }

// Running reports whether the autonomous loop is active.
func (s *LoopService) Running() bool { return s.running.Load() }

// Run drives the loop until the context is cancelled. The cadence follows
// the survival tier of the most recent cycle; failed cycles use the fixed
// failure backoff instead.
func (s *LoopService) Run(ctx context.Context) error {
	s.running.Store(true)
	defer s.running.Store(false)

	slog.Info("decision loop starting", "agent", s.cfg.Agent.ID)
	for {
		if ctx.Err() != nil {
			slog.Info("decision loop stopping")
			return ctx.Err()
		}

		t, err := s.ExecuteTurn(ctx)
		interval := s.cfg.Survival.Cadence.IntervalFor(s.tier())
		if err != nil {
			slog.Error("cycle failed", "error", err)
			interval = s.cfg.Loop.FailureBackoff
		} else {
			slog.Info("cycle completed", "turn", t.ID, "tier", s.tier(), "failed", t.Failed())
		}

		s.sleep(ctx, interval)
	}
}

// ExecuteTurn runs one autonomous cycle.
func (s *LoopService) ExecuteTurn(ctx context.Context) (*turn.Turn, error) {
	return s.executeCycle(ctx, "")
}

// ExecuteManualTurn runs one cycle seeded with operator input. The input is
// external text and passes through the injection guard before prompting.
func (s *LoopService) ExecuteManualTurn(ctx context.Context, input string) (*turn.Turn, error) {
	guarded, err := s.defense.Guard(input)
	if err != nil {
		t := turn.New()
		t.Observation = fmt.Sprintf("manual input rejected: %v", err)
		if storeErr := s.store.StoreTurn(ctx, t); storeErr != nil {
			slog.Error("turn persist failed", "turn", t.ID, "error", storeErr)
		}
		return t, nil
	}
	return s.executeCycle(ctx, guarded)
}

func (s *LoopService) executeCycle(ctx context.Context, manualInput string) (*turn.Turn, error) {
	ac := s.contexts.Build(ctx)
	s.noteTier(ctx, ac)

	t := turn.New()
	ctx, span := otel.StartTurnSpan(ctx, t.ID, string(ac.Survival.Tier))
	defer span.End()
	start := s.now()

	response, err := s.complete(ctx, &ac, manualInput)
	if err != nil {
		t.Observation = fmt.Sprintf("reasoning unavailable: %v", err)
		s.finishTurn(ctx, t, &ac, start)
		return t, fmt.Errorf("reasoning: %w", err)
	}
	t.Thought = response

	if analysis := s.defense.Analyze(response); analysis.IsInjection {
		t.Observation = fmt.Sprintf("response flagged as potential injection (risk %s), no action taken", analysis.RiskLevel)
		s.finishTurn(ctx, t, &ac, start)
		return t, nil
	}
	if err := s.defense.ValidateResponse(response); err != nil {
		t.Observation = fmt.Sprintf("response rejected: %v", err)
		s.finishTurn(ctx, t, &ac, start)
		return t, nil
	}

	call, ok := tool.ParseAction(response)
	if !ok {
		t.Observation = "no action taken"
		s.finishTurn(ctx, t, &ac, start)
		return t, nil
	}

	t.Action = &turn.Action{Tool: string(call.Name), Input: call.Input}
	output, err := s.tools.Dispatch(ctx, call, ac.Capabilities)
	if err != nil {
		t.Action.Error = err.Error()
		t.Observation = fmt.Sprintf("Action %s failed with error: %v", call.Name, err)
	} else {
		t.Action.Output = output
		t.Observation = output
	}
	if s.metrics != nil {
		s.metrics.ToolCalls.Add(ctx, 1)
	}

	s.finishTurn(ctx, t, &ac, start)
	return t, nil
}

// finishTurn persists the turn and emits events and metrics. Persistence
// failure is logged, not propagated: the cycle's decision already happened.
func (s *LoopService) finishTurn(ctx context.Context, t *turn.Turn, ac *agentstate.Context, start time.Time) {
	if err := s.store.StoreTurn(ctx, t); err != nil {
		slog.Error("turn persist failed", "turn", t.ID, "error", err)
	}

	event := messagequeue.TurnCompletedEvent{
		TurnID:  t.ID,
		Thought: t.Thought,
		Failed:  t.Failed(),
	}
	if t.Action != nil {
		event.Tool = t.Action.Tool
	}
	if data, err := json.Marshal(event); err == nil {
		if err := s.queue.Publish(ctx, messagequeue.SubjectTurnCompleted, data); err != nil {
			slog.Warn("turn event publish failed", "error", err)
		}
	}
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, messagequeue.SubjectTurnCompleted, event)
	}

	if s.metrics != nil {
		s.metrics.TurnsCompleted.Add(ctx, 1)
		if t.Failed() {
			s.metrics.TurnsFailed.Add(ctx, 1)
		}
		s.metrics.TurnDuration.Record(ctx, s.now().Sub(start).Seconds())
		s.metrics.StableBalance.Record(ctx, int64(ac.Survival.StableBalance))
	}
}

// noteTier records the cycle's tier and announces transitions. The first
// built context seeds the tier silently so process start never emits a
// transition.
func (s *LoopService) noteTier(ctx context.Context, ac agentstate.Context) {
	seeded := s.lastTier.Load()
	if seeded == nil {
		s.lastTier.Store(ac.Survival.Tier)
		slog.Info("survival tier established", "tier", ac.Survival.Tier, "stable", ac.Survival.StableFormatted)
		return
	}

	prev := seeded.(survival.Tier)
	if prev == ac.Survival.Tier {
		return
	}
	s.lastTier.Store(ac.Survival.Tier)

	slog.Warn("survival tier changed", "previous", prev, "current", ac.Survival.Tier, "stable", ac.Survival.StableFormatted)
	event := messagequeue.TierChangedEvent{
		Previous: string(prev),
		Current:  string(ac.Survival.Tier),
		Balance:  ac.Survival.StableBalance,
	}
	if data, err := json.Marshal(event); err == nil {
		if err := s.queue.Publish(ctx, messagequeue.SubjectTierChanged, data); err != nil {
			slog.Warn("tier event publish failed", "error", err)
		}
	}
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, messagequeue.SubjectTierChanged, event)
	}
}

// tier returns the last observed tier, conservative before the first cycle.
func (s *LoopService) tier() survival.Tier {
	v := s.lastTier.Load()
	if v == nil {
		return survival.TierCritical
	}
	return v.(survival.Tier)
}

// AgentStatus is the dashboard snapshot of the agent's overall state.
type AgentStatus struct {
	AgentID       string        `json:"agent_id"`
	PublicKey     string        `json:"public_key"`
	Network       string        `json:"network"`
	Tier          survival.Tier `json:"tier"`
	NativeBalance string        `json:"native_balance"`
	StableBalance string        `json:"stable_balance"`
	DaysSurvived  int           `json:"days_survived"`
	TurnCount     int           `json:"turn_count"`
	FailedTurns   int           `json:"failed_turns"`
	TotalEarned   float64       `json:"total_earned"`
	Running       bool          `json:"running"`
	Degraded      bool          `json:"degraded"`
}

// Status assembles the current agent status for the API.
func (s *LoopService) Status(ctx context.Context) (*AgentStatus, error) {
	ac := s.contexts.Build(ctx)

	status := &AgentStatus{
		AgentID:       ac.Identity.AgentID,
		PublicKey:     ac.Identity.PublicKey,
		Network:       ac.Environment.Network,
		Tier:          ac.Survival.Tier,
		NativeBalance: ac.Survival.NativeFormatted,
		StableBalance: ac.Survival.StableFormatted,
		DaysSurvived:  ac.Survival.DaysSurvived,
		Running:       s.Running(),
		Degraded:      ac.Degraded,
	}

	stats, err := s.store.GetStats(ctx, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	status.TurnCount = stats.TurnCount
	status.FailedTurns = stats.FailedTurns
	status.TotalEarned = stats.TotalEarned
	return status, nil
}

// complete asks the reasoning backend for the cycle's thought. The primary
// model gets one attempt; on failure the call retries once on the fallback
// model with reduced parameters.
func (s *LoopService) complete(ctx context.Context, ac *agentstate.Context, manualInput string) (string, error) {
	system := s.renderSystemPrompt(ac)
	user := "Assess your situation and decide your next action."
	if manualInput != "" {
		user = "Operator request: " + manualInput
	}
	messages := []reasoning.Message{
		{Role: reasoning.RoleSystem, Content: system},
		{Role: reasoning.RoleUser, Content: user},
	}

	primary := s.cfg.LLM.PrimaryModel
	if ac.Capabilities.ModelTier != survival.ModelFrontier {
		primary = s.cfg.LLM.FallbackModel
	}

	response, err := s.reasoner.Complete(ctx, reasoning.Request{
		Messages:    messages,
		Model:       primary,
		MaxTokens:   s.cfg.LLM.MaxTokens,
		Temperature: 0.7,
	})
	if err == nil {
		return response, nil
	}
	slog.Warn("primary reasoning failed, retrying on fallback", "model", primary, "error", err)

	response, err = s.reasoner.Complete(ctx, reasoning.Request{
		Messages:    messages,
		Model:       s.cfg.LLM.FallbackModel,
		MaxTokens:   s.cfg.LLM.FallbackMaxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("fallback model: %w", err)
	}
	return response, nil
}

// renderSystemPrompt assembles the cycle prompt: identity, survival state
// with tier-appropriate urgency, the allowed tool list and the single-action
// convention.
func (s *LoopService) renderSystemPrompt(ac *agentstate.Context) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, an autonomous agent that must earn income to pay for its own compute.\n", ac.Identity.AgentID)
	fmt.Fprintf(&b, "Wallet: %s (network %s, generation %d)\n\n", ac.Identity.PublicKey, ac.Environment.Network, ac.Identity.Generation)

	fmt.Fprintf(&b, "SURVIVAL STATE: tier %s\n", strings.ToUpper(string(ac.Survival.Tier)))
	switch ac.Survival.Tier {
	case survival.TierNormal:
		b.WriteString("Runway is healthy. Invest in high-value work and long-term positioning.\n")
	case survival.TierLowCompute:
		b.WriteString("Runway is shrinking. Favor quick, reliable income over ambitious work.\n")
	case survival.TierCritical:
		b.WriteString("Funds are nearly exhausted. Every action must directly pursue income.\n")
	default:
		b.WriteString("Funds are exhausted. Only observation remains until income arrives.\n")
	}
	fmt.Fprintf(&b, "Balance: %s, %s. Days survived: %d.\n\n", ac.Survival.StableFormatted, ac.Survival.NativeFormatted, ac.Survival.DaysSurvived)

	writeList := func(header string, items []string) {
		fmt.Fprintf(&b, "%s:\n", header)
		for _, it := range items {
			fmt.Fprintf(&b, "- %s\n", it)
		}
		b.WriteByte('\n')
	}
	writeList("GOALS", ac.Goals)
	writeList("THREATS", ac.Threats)
	writeList("OPPORTUNITIES", ac.Opportunities)

	names := s.tools.Names()
	allowed := make([]string, 0, len(names))
	for name, req := range names {
		if req.Allowed(ac.Capabilities) {
			allowed = append(allowed, string(name))
		}
	}
	sort.Strings(allowed)
	b.WriteString("AVAILABLE TOOLS (your current tier allows exactly these):\n")
	for _, name := range allowed {
		fmt.Fprintf(&b, "- %s\n", name)
	}
	b.WriteByte('\n')

	if n := len(ac.RecentTurns); n > 0 {
		fmt.Fprintf(&b, "RECENT TURNS (%d):\n", n)
		for _, rt := range ac.RecentTurns {
			status := "ok"
			if rt.Failed {
				status = "failed"
			}
			fmt.Fprintf(&b, "- [%s] %s -> %s\n", status, rt.Tool, firstLine(rt.Observation))
		}
		b.WriteByte('\n')
	}

	b.WriteString("Think step by step, then take at most one action using exactly this format on its own line:\n")
	b.WriteString("ACTION: tool_name(parameters)\n")
	b.WriteString("If no action is needed this cycle, end your response without an ACTION line.\n")
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
