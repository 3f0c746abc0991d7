package bountysources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/outlive-sh/outlive/internal/domain/bounty"
	"github.com/outlive-sh/outlive/internal/port/bountysource"
	"github.com/outlive-sh/outlive/internal/port/cache"
)

// Workboard discovers tasks from a JSON listing board.
type Workboard struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      cache.Cache
}

// NewWorkboard creates the workboard source. cache may be nil.
func NewWorkboard(baseURL, apiKey string, c cache.Cache) *Workboard {
	return &Workboard{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      c,
	}
}

// Name returns the canonical source identifier.
func (w *Workboard) Name() bounty.Source { return bounty.SourceWorkboard }

type workboardTask struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Reward      uint64     `json:"reward_amount"`
	RewardToken string     `json:"reward_token"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	URL         string     `json:"url"`
	Skills      []string   `json:"skills"`
	Status      string     `json:"status"`
}

// Fetch returns the board's currently open tasks.
func (w *Workboard) Fetch(ctx context.Context) ([]bounty.Bounty, error) {
	body, err := w.get(ctx, w.baseURL+"/api/tasks?status=open", true)
	if err != nil {
		return nil, fmt.Errorf("workboard fetch: %w", err)
	}

	var result struct {
		Tasks []workboardTask `json:"tasks"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("workboard fetch: unmarshal: %w", err)
	}

	now := time.Now().UTC()
	bounties := make([]bounty.Bounty, 0, len(result.Tasks))
	for _, task := range result.Tasks {
		token := task.RewardToken
		if token == "" {
			token = "USDC"
		}
		bounties = append(bounties, bounty.Bounty{
			ID:           "workboard:" + task.ID,
			Source:       bounty.SourceWorkboard,
			Title:        task.Title,
			Description:  task.Description,
			RewardAmount: task.Reward,
			RewardToken:  token,
			Deadline:     task.Deadline,
			URL:          task.URL,
			Skills:       task.Skills,
			Status:       bounty.StatusOpen,
			DiscoveredAt: now,
			Metadata:     map[string]string{"task_id": task.ID},
		})
	}
	return bounties, nil
}

// CheckStatus queries one task's current status keyword.
func (w *Workboard) CheckStatus(ctx context.Context, b *bounty.Bounty) (*bountysource.StatusSignal, error) {
	taskID := b.Metadata["task_id"]
	if taskID == "" {
		return nil, fmt.Errorf("bounty %s: missing task metadata", b.ID)
	}

	body, err := w.get(ctx, w.baseURL+"/api/tasks/"+taskID, false)
	if err != nil {
		return nil, fmt.Errorf("workboard task %s: %w", b.ID, err)
	}

	var task workboardTask
	if err := json.Unmarshal(body, &task); err != nil {
		return nil, fmt.Errorf("workboard task %s: unmarshal: %w", b.ID, err)
	}

	status := strings.ToLower(task.Status)
	return &bountysource.StatusSignal{
		Closed:     status == "closed" || status == "completed" || status == "paid",
		StatusText: status,
	}, nil
}

func (w *Workboard) get(ctx context.Context, endpoint string, cacheable bool) ([]byte, error) {
	if cacheable && w.cache != nil {
		if data, ok, err := w.cache.Get(ctx, endpoint); err == nil && ok {
			return data, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if w.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}

	if cacheable && w.cache != nil {
		_ = w.cache.Set(ctx, endpoint, data, fetchCacheTTL)
	}
	return data, nil
}
