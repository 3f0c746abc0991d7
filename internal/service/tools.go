package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/outlive-sh/outlive/internal/domain"
	"github.com/outlive-sh/outlive/internal/domain/bounty"
	"github.com/outlive-sh/outlive/internal/domain/survival"
	"github.com/outlive-sh/outlive/internal/domain/tool"
	"github.com/outlive-sh/outlive/internal/port/database"
	"github.com/outlive-sh/outlive/internal/port/trade"
	"github.com/outlive-sh/outlive/internal/port/wallet"
)

// fetchLimit caps how much of a fetched page is returned to the prompt.
const fetchLimit = 4000

// Handler executes one tool call.
type Handler func(ctx context.Context, input string) (string, error)

// registration binds a handler to its declared capability requirement.
type registration struct {
	requires tool.Requirement
	run      Handler
}

// ToolDeps bundles the collaborators the tool registry dispatches into.
type ToolDeps struct {
	Store       database.Store
	Balances    wallet.BalanceProvider
	Wallet      *wallet.Wallet
	Transferrer wallet.Transferrer
	Trader      trade.Provider
	Scraper     *ScraperService
	Evaluator   *EvaluatorService
	Executor    *ExecutorService
	Monitor     *MonitorService

	// WorkDir confines file and shell tools.
	WorkDir string
	// Mints for the trade tool's fixed SOL/USDC pair.
	NativeMint  string
	StableMint  string
	SlippageBps int
}

// ToolService holds the closed tool registry. Every tool declares the
// capability it needs and dispatch rejects calls the current tier does not
// allow.
type ToolService struct {
	deps       ToolDeps
	registry   map[tool.Name]registration
	httpClient *http.Client
	now        func() time.Time
}

// NewToolService creates the registry with every built-in tool registered.
func NewToolService(deps ToolDeps) *ToolService {
	s := &ToolService{
		deps:       deps,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
	s.registry = map[tool.Name]registration{
		tool.CheckBalance:   {tool.RequiresNone, s.checkBalance},
		tool.Transfer:       {tool.RequiresTrade, s.transfer},
		tool.Trade:          {tool.RequiresTrade, s.trade},
		tool.ReadFile:       {tool.RequiresNone, s.readFile},
		tool.WriteFile:      {tool.RequiresSelfModify, s.writeFile},
		tool.RunCommand:     {tool.RequiresSelfModify, s.runCommand},
		tool.WebSearch:      {tool.RequiresNone, s.webSearch},
		tool.WebFetch:       {tool.RequiresNone, s.webFetch},
		tool.GitCommit:      {tool.RequiresSelfModify, s.gitCommit},
		tool.GitStatus:      {tool.RequiresNone, s.gitStatus},
		tool.BountyScan:     {tool.RequiresNone, s.bountyScan},
		tool.BountyEvaluate: {tool.RequiresNone, s.bountyEvaluate},
		tool.BountyClaim:    {tool.RequiresNone, s.bountyClaim},
		tool.BountyExecute:  {tool.RequiresNone, s.bountyExecute},
		tool.BountyStatus:   {tool.RequiresNone, s.bountyStatus},
	}
	return s
}

// Names returns the registered tool names with their requirements, for
// prompt rendering.
func (s *ToolService) Names() map[tool.Name]tool.Requirement {
	out := make(map[tool.Name]tool.Requirement, len(s.registry))
	for name, reg := range s.registry {
		out[name] = reg.requires
	}
	return out
}

// Dispatch runs one tool call after checking its capability requirement
// against the current tier's capabilities. Gated tools are rejected here,
// never silently executed.
func (s *ToolService) Dispatch(ctx context.Context, call tool.Call, caps survival.Capabilities) (string, error) {
	reg, ok := s.registry[call.Name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", call.Name)
	}
	if !reg.requires.Allowed(caps) {
		return "", fmt.Errorf("%w: tool %s requires %s capability", domain.ErrCapabilityDenied, call.Name, reg.requires)
	}

	slog.Info("dispatching tool", "tool", call.Name, "input", call.Input)
	return reg.run(ctx, call.Input)
}

func (s *ToolService) checkBalance(ctx context.Context, _ string) (string, error) {
	bal, err := s.deps.Balances.GetBalance(ctx, s.deps.Wallet)
	if err != nil {
		return "", fmt.Errorf("check balance: %w", err)
	}
	return fmt.Sprintf("native: %s, stable: %s", bal.NativeFormatted, bal.StableFormatted), nil
}

// transfer expects "recipient,amount" with the amount in lamports.
func (s *ToolService) transfer(ctx context.Context, input string) (string, error) {
	parts := splitArgs(input)
	if len(parts) != 2 {
		return "", fmt.Errorf("transfer expects recipient,amount; got %q", input)
	}
	amount, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return "", fmt.Errorf("transfer amount %q: %w", parts[1], err)
	}

	result, err := s.deps.Transferrer.Transfer(ctx, s.deps.Wallet, parts[0], amount)
	if err != nil {
		return "", fmt.Errorf("transfer: %w", err)
	}
	if !result.Success {
		return "", fmt.Errorf("transfer failed: %s", result.Error)
	}
	return "transfer submitted, signature " + result.Signature, nil
}

// trade expects "direction,amount" where direction is buy (native->stable)
// or sell (stable->native).
func (s *ToolService) trade(ctx context.Context, input string) (string, error) {
	parts := splitArgs(input)
	if len(parts) != 2 {
		return "", fmt.Errorf("trade expects direction,amount; got %q", input)
	}
	amount, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return "", fmt.Errorf("trade amount %q: %w", parts[1], err)
	}

	inMint, outMint := s.deps.NativeMint, s.deps.StableMint
	if parts[0] == "sell" {
		inMint, outMint = outMint, inMint
	}

	quote, err := s.deps.Trader.GetQuote(ctx, inMint, outMint, amount, s.deps.SlippageBps)
	if err != nil {
		return "", fmt.Errorf("trade quote: %w", err)
	}
	swap, err := s.deps.Trader.ExecuteSwap(ctx, s.deps.Wallet, quote)
	if err != nil {
		return "", fmt.Errorf("trade swap: %w", err)
	}
	if !swap.Success {
		return "", fmt.Errorf("trade failed: %s", swap.Error)
	}
	return fmt.Sprintf("swapped %d for ~%d, signature %s", quote.InAmount, quote.OutAmount, swap.Signature), nil
}

func (s *ToolService) readFile(_ context.Context, input string) (string, error) {
	path, err := s.resolvePath(input)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	if len(data) > fetchLimit {
		data = data[:fetchLimit]
	}
	return string(data), nil
}

// writeFile expects "path,content" with content taken verbatim after the
// first comma.
func (s *ToolService) writeFile(_ context.Context, input string) (string, error) {
	rel, content, found := strings.Cut(input, ",")
	if !found {
		return "", fmt.Errorf("write_file expects path,content; got %q", input)
	}
	path, err := s.resolvePath(strings.TrimSpace(rel))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(content), rel), nil
}

func (s *ToolService) runCommand(ctx context.Context, input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", fmt.Errorf("run_command expects a shell command")
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", input)
	cmd.Dir = s.deps.WorkDir
	out, err := cmd.CombinedOutput()
	if len(out) > fetchLimit {
		out = out[:fetchLimit]
	}
	if err != nil {
		return "", fmt.Errorf("command failed: %w: %s", err, string(out))
	}
	return string(out), nil
}

func (s *ToolService) webSearch(ctx context.Context, input string) (string, error) {
	endpoint := "https://duckduckgo.com/html/?q=" + url.QueryEscape(input)
	return s.webFetch(ctx, endpoint)
}

func (s *ToolService) webFetch(ctx context.Context, input string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSpace(input), nil)
	if err != nil {
		return "", fmt.Errorf("web fetch: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("web fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, fetchLimit))
	if err != nil {
		return "", fmt.Errorf("web fetch read: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("web fetch: http %d", resp.StatusCode)
	}
	return string(data), nil
}

func (s *ToolService) gitCommit(ctx context.Context, input string) (string, error) {
	msg := strings.TrimSpace(input)
	if msg == "" {
		msg = "agent checkpoint"
	}
	add := exec.CommandContext(ctx, "git", "add", "-A")
	add.Dir = s.deps.WorkDir
	if out, err := add.CombinedOutput(); err != nil {
		return "", fmt.Errorf("git add: %w: %s", err, out)
	}
	commit := exec.CommandContext(ctx, "git", "commit", "-m", msg)
	commit.Dir = s.deps.WorkDir
	out, err := commit.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git commit: %w: %s", err, out)
	}
	return string(out), nil
}

func (s *ToolService) gitStatus(ctx context.Context, _ string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "status", "--short")
	cmd.Dir = s.deps.WorkDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git status: %w: %s", err, out)
	}
	if len(out) == 0 {
		return "working tree clean", nil
	}
	return string(out), nil
}

func (s *ToolService) bountyScan(ctx context.Context, _ string) (string, error) {
	result, err := s.deps.Scraper.ScanAll(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("scanned %d listings, stored %d (%d source errors)", result.Fetched, result.Stored, len(result.Errors)), nil
}

// bountyEvaluate takes a bounty id, or evaluates all open bounties when the
// input is empty.
func (s *ToolService) bountyEvaluate(ctx context.Context, input string) (string, error) {
	skills := s.deps.Evaluator.Skills(ctx)

	id := strings.TrimSpace(input)
	if id != "" {
		b, err := s.deps.Store.GetBounty(ctx, id)
		if err != nil {
			return "", fmt.Errorf("bounty %s: %w", id, err)
		}
		ev := s.deps.Evaluator.Evaluate(b, skills)
		return formatEvaluation(&ev), nil
	}

	open := bounty.StatusOpen
	bounties, err := s.deps.Store.GetBounties(ctx, database.BountyFilter{Status: &open, Limit: 20})
	if err != nil {
		return "", fmt.Errorf("open bounties: %w", err)
	}
	if len(bounties) == 0 {
		return "no open bounties to evaluate", nil
	}

	evals := s.deps.Evaluator.EvaluateMany(bounties, skills)
	var sb strings.Builder
	for i := range evals {
		sb.WriteString(formatEvaluation(&evals[i]))
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

func (s *ToolService) bountyClaim(ctx context.Context, input string) (string, error) {
	id := strings.TrimSpace(input)
	if id == "" {
		return "", fmt.Errorf("bounty_claim expects a bounty id")
	}
	now := s.now().UTC()
	if err := s.deps.Store.UpdateBountyStatus(ctx, id, bounty.StatusClaimed, &now); err != nil {
		return "", fmt.Errorf("claim %s: %w", id, err)
	}
	return "claimed " + id, nil
}

func (s *ToolService) bountyExecute(ctx context.Context, input string) (string, error) {
	id := strings.TrimSpace(input)
	if id == "" {
		return "", fmt.Errorf("bounty_execute expects a bounty id")
	}
	b, err := s.deps.Store.GetBounty(ctx, id)
	if err != nil {
		return "", fmt.Errorf("bounty %s: %w", id, err)
	}
	if b.Status != bounty.StatusClaimed {
		return "", fmt.Errorf("bounty %s is %s, claim it first", id, b.Status)
	}

	ev := s.deps.Evaluator.Evaluate(b, s.deps.Evaluator.Skills(ctx))
	result := s.deps.Executor.Execute(ctx, b, &ev)

	if !result.Success {
		return "", fmt.Errorf("execution failed after %d steps: %s (learnings: %s)", result.CompletedSteps, result.Error, result.Learnings)
	}

	if err := s.deps.Store.UpdateBountyStatus(ctx, id, bounty.StatusSubmitted, nil); err != nil {
		slog.Warn("submitted status update failed", "bounty", id, "error", err)
	}
	return fmt.Sprintf("submitted %s in %s (%d steps, url %s)", id, result.TotalTime.Round(time.Second), result.CompletedSteps, result.SubmissionURL), nil
}

func (s *ToolService) bountyStatus(ctx context.Context, _ string) (string, error) {
	var sb strings.Builder
	for _, status := range []bounty.Status{bounty.StatusOpen, bounty.StatusClaimed, bounty.StatusSubmitted, bounty.StatusCompleted} {
		st := status
		bounties, err := s.deps.Store.GetBounties(ctx, database.BountyFilter{Status: &st})
		if err != nil {
			return "", fmt.Errorf("bounty status: %w", err)
		}
		fmt.Fprintf(&sb, "%s: %d\n", status, len(bounties))
	}
	return sb.String(), nil
}

// resolvePath confines file tools to the configured work directory.
func (s *ToolService) resolvePath(rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return "", fmt.Errorf("empty path")
	}
	path := filepath.Clean(filepath.Join(s.deps.WorkDir, rel))
	root := filepath.Clean(s.deps.WorkDir)
	if path != root && !strings.HasPrefix(path, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the work directory", rel)
	}
	return path, nil
}

func formatEvaluation(ev *bounty.Evaluation) string {
	return fmt.Sprintf("%s: score %.2f, difficulty %s, roi %.2f, match %.2f, recommended %t",
		ev.BountyID, ev.Score, ev.Difficulty, ev.ROI, ev.SkillsMatch, ev.Recommended)
}

func splitArgs(input string) []string {
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
