// Package bountysources implements the bounty source port for the supported
// listing platforms.
package bountysources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/outlive-sh/outlive/internal/domain/bounty"
	"github.com/outlive-sh/outlive/internal/port/bountysource"
	"github.com/outlive-sh/outlive/internal/port/cache"
)

// fetchCacheTTL bounds how often a source is re-queried for the same listing
// page.
const fetchCacheTTL = 5 * time.Minute

// usdcUnit converts whole-dollar rewards to the smallest USDC unit.
const usdcUnit = 1_000_000

// rewardPattern extracts a dollar amount from titles and labels, e.g. "$250"
// or "500 USDC".
var rewardPattern = regexp.MustCompile(`(?i)\$\s*([0-9][0-9,]*)|([0-9][0-9,]*)\s*usdc`)

// GitHub discovers bounty-labeled issues through the issue search API.
type GitHub struct {
	baseURL    string
	token      string
	query      string
	httpClient *http.Client
	cache      cache.Cache
}

// NewGitHub creates the GitHub source. cache may be nil to disable caching.
func NewGitHub(baseURL, token, query string, c cache.Cache) *GitHub {
	return &GitHub{
		baseURL:    baseURL,
		token:      token,
		query:      query,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      c,
	}
}

// Name returns the canonical source identifier.
func (g *GitHub) Name() bounty.Source { return bounty.SourceGitHub }

type githubIssue struct {
	Number        int    `json:"number"`
	Title         string `json:"title"`
	Body          string `json:"body"`
	State         string `json:"state"`
	HTMLURL       string `json:"html_url"`
	RepositoryURL string `json:"repository_url"`
	Labels        []struct {
		Name string `json:"name"`
	} `json:"labels"`
	PullRequest *struct {
		MergedAt *time.Time `json:"merged_at"`
	} `json:"pull_request,omitempty"`
}

// Fetch searches for open bounty-labeled issues and adapts them into the
// canonical bounty shape.
func (g *GitHub) Fetch(ctx context.Context) ([]bounty.Bounty, error) {
	endpoint := g.baseURL + "/search/issues?q=" + url.QueryEscape(g.query) + "&per_page=50"

	body, err := g.get(ctx, endpoint, true)
	if err != nil {
		return nil, fmt.Errorf("github search: %w", err)
	}

	var result struct {
		Items []githubIssue `json:"items"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("github search: unmarshal: %w", err)
	}

	now := time.Now().UTC()
	bounties := make([]bounty.Bounty, 0, len(result.Items))
	for _, issue := range result.Items {
		repo := repoFromAPIURL(issue.RepositoryURL)
		if repo == "" {
			continue
		}
		labels := make([]string, 0, len(issue.Labels))
		for _, l := range issue.Labels {
			labels = append(labels, l.Name)
		}
		bounties = append(bounties, bounty.Bounty{
			ID:           fmt.Sprintf("github:%s#%d", repo, issue.Number),
			Source:       bounty.SourceGitHub,
			Title:        issue.Title,
			Description:  issue.Body,
			RewardAmount: ParseReward(issue.Title + " " + strings.Join(labels, " ")),
			RewardToken:  "USDC",
			URL:          issue.HTMLURL,
			Skills:       skillsFromLabels(labels),
			Status:       bounty.StatusOpen,
			DiscoveredAt: now,
			Metadata: map[string]string{
				"repo":   repo,
				"number": strconv.Itoa(issue.Number),
			},
		})
	}
	return bounties, nil
}

// CheckStatus queries the issue's current state.
func (g *GitHub) CheckStatus(ctx context.Context, b *bounty.Bounty) (*bountysource.StatusSignal, error) {
	repo := b.Metadata["repo"]
	number := b.Metadata["number"]
	if repo == "" || number == "" {
		return nil, fmt.Errorf("bounty %s: missing repo metadata", b.ID)
	}

	body, err := g.get(ctx, fmt.Sprintf("%s/repos/%s/issues/%s", g.baseURL, repo, number), false)
	if err != nil {
		return nil, fmt.Errorf("github issue %s: %w", b.ID, err)
	}

	var issue githubIssue
	if err := json.Unmarshal(body, &issue); err != nil {
		return nil, fmt.Errorf("github issue %s: unmarshal: %w", b.ID, err)
	}

	signal := &bountysource.StatusSignal{
		Closed:     issue.State == "closed",
		StatusText: issue.State,
	}
	if issue.PullRequest != nil && issue.PullRequest.MergedAt != nil {
		signal.Merged = true
	}
	return signal, nil
}

func (g *GitHub) get(ctx context.Context, endpoint string, cacheable bool) ([]byte, error) {
	if cacheable && g.cache != nil {
		if data, ok, err := g.cache.Get(ctx, endpoint); err == nil && ok {
			return data, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.httpClient.Do(req)
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

	if cacheable && g.cache != nil {
		_ = g.cache.Set(ctx, endpoint, data, fetchCacheTTL)
	}
	return data, nil
}

// repoFromAPIURL turns ".../repos/owner/name" into "owner/name".
func repoFromAPIURL(apiURL string) string {
	_, after, found := strings.Cut(apiURL, "/repos/")
	if !found {
		return ""
	}
	return after
}

// ParseReward extracts a whole-currency reward from free text and converts it
// to the smallest unit. Returns 0 when no amount is found.
func ParseReward(text string) uint64 {
	m := rewardPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	raw := m[1]
	if raw == "" {
		raw = m[2]
	}
	raw = strings.ReplaceAll(raw, ",", "")
	amount, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return amount * usdcUnit
}

// skillsFromLabels maps labels onto skill tags, skipping process labels like
// "bounty" itself.
func skillsFromLabels(labels []string) []string {
	skills := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.ToLower(strings.TrimSpace(l))
		switch {
		case l == "" || l == "bounty" || l == "help wanted" || l == "good first issue":
			continue
		case strings.HasPrefix(l, "$"):
			continue
		default:
			skills = append(skills, l)
		}
	}
	return skills
}
