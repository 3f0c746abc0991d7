package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/outlive-sh/outlive/internal/domain"
	"github.com/outlive-sh/outlive/internal/domain/bounty"
	"github.com/outlive-sh/outlive/internal/port/database"
)

// hourlyRate is the assumed cost of one hour of agent work, in the smallest
// currency unit (10 USDC/hour).
const hourlyRate = 10_000_000

// skillStateID is the state-store key for the persisted skill vector.
const skillStateID = "skills"

// Base hour estimates per difficulty bucket.
var baseHours = map[bounty.Difficulty]float64{
	bounty.DifficultyEasy:   2,
	bounty.DifficultyMedium: 8,
	bounty.DifficultyHard:   24,
}

var difficultyMultiplier = map[bounty.Difficulty]float64{
	bounty.DifficultyEasy:   1.0,
	bounty.DifficultyMedium: 0.8,
	bounty.DifficultyHard:   0.6,
}

// Keyword buckets for difficulty voting.
var (
	easyWords   = []string{"typo", "simple", "small", "minor", "quick", "readme", "rename", "bump"}
	mediumWords = []string{"implement", "add", "feature", "integrate", "refactor", "update", "endpoint"}
	hardWords   = []string{"architecture", "redesign", "complex", "security", "concurrency", "migration", "performance", "distributed"}
)

// Content keywords feeding the skill-match and time-estimate heuristics.
var contentSkillWords = map[string]string{
	"documentation": "documentation",
	"docs":          "documentation",
	"readme":        "documentation",
	"api":           "api",
	"endpoint":      "api",
	"scraping":      "scraping",
	"scraper":       "scraping",
	"crawl":         "scraping",
}

// Recommendation thresholds. All three must hold strictly.
const (
	recommendScore = 0.6
	recommendROI   = 1.2
	recommendMatch = 0.6
)

// EvaluatorService scores bounties against the agent's skill vector and
// applies the post-completion learning update.
type EvaluatorService struct {
	store database.Store
	now   func() time.Time
}

// NewEvaluatorService creates an EvaluatorService.
func NewEvaluatorService(store database.Store) *EvaluatorService {
	return &EvaluatorService{store: store, now: time.Now}
}

// Skills loads the persisted skill vector, falling back to the defaults for a
// fresh agent.
func (s *EvaluatorService) Skills(ctx context.Context) bounty.SkillVector {
	data, err := s.store.GetState(ctx, skillStateID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("skill vector load failed, using defaults", "error", err)
		}
		return bounty.DefaultSkills()
	}
	var v bounty.SkillVector
	if err := json.Unmarshal(data, &v); err != nil {
		slog.Warn("skill vector corrupt, using defaults", "error", err)
		return bounty.DefaultSkills()
	}
	return v
}

// Evaluate scores one bounty against the given skill vector.
func (s *EvaluatorService) Evaluate(b *bounty.Bounty, skills bounty.SkillVector) bounty.Evaluation {
	text := strings.ToLower(b.Title + " " + b.Description)

	difficulty := classifyDifficulty(text)
	hours := estimateHours(difficulty, text)
	cost := uint64(math.Round(hours * hourlyRate))
	match := skillsMatch(b, text, skills)
	urgency := urgencyFor(b, s.now())
	confidence := confidenceFor(b, match, s.now())

	roi := 0.0
	if cost > 0 {
		roi = float64(b.RewardAmount) / float64(cost)
	}

	score := computeScore(difficulty, roi, match, urgency, confidence)
	recommended := score > recommendScore && roi > recommendROI && match > recommendMatch

	return bounty.Evaluation{
		BountyID:       b.ID,
		Score:          score,
		Difficulty:     difficulty,
		EstimatedHours: hours,
		EstimatedCost:  cost,
		ROI:            roi,
		SkillsMatch:    match,
		Urgency:        urgency,
		Confidence:     confidence,
		Reasoning: []string{
			fmt.Sprintf("difficulty: %s (%.0fh base estimate)", difficulty, baseHours[difficulty]),
			fmt.Sprintf("estimated %.1fh at the standard rate, cost %d units", hours, cost),
			fmt.Sprintf("skills match %.2f against declared tags %v", match, b.Skills),
			fmt.Sprintf("urgency %.2f from deadline", urgency),
			fmt.Sprintf("confidence %.2f in this estimate", confidence),
			fmt.Sprintf("roi %.2f for reward %d", roi, b.RewardAmount),
			fmt.Sprintf("score %.2f, recommended: %t", score, recommended),
		},
		Recommended: recommended,
	}
}

// EvaluateMany scores a batch and sorts it by descending score.
func (s *EvaluatorService) EvaluateMany(bounties []bounty.Bounty, skills bounty.SkillVector) []bounty.Evaluation {
	out := make([]bounty.Evaluation, 0, len(bounties))
	for i := range bounties {
		out = append(out, s.Evaluate(&bounties[i], skills))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// RecordSuccess applies the learning update after a successful completion:
// each declared tag is nudged upward and the vector is persisted. Failures
// never reach this method.
func (s *EvaluatorService) RecordSuccess(ctx context.Context, b *bounty.Bounty) error {
	skills := s.Skills(ctx)
	skills.Nudge(b.Skills)

	data, err := json.Marshal(skills)
	if err != nil {
		return fmt.Errorf("marshal skill vector: %w", err)
	}
	if err := s.store.StoreState(ctx, skillStateID, "skill_vector", data); err != nil {
		return fmt.Errorf("persist skill vector: %w", err)
	}
	slog.Info("skill vector updated", "bounty", b.ID, "tags", b.Skills)
	return nil
}

// computeScore applies the fixed scoring formula. ROI contribution is capped
// at 5 and normalized; the whole score is clamped to [0,1].
func computeScore(difficulty bounty.Difficulty, roi, match, urgency, confidence float64) float64 {
	score := difficultyMultiplier[difficulty] *
		(0.4*math.Min(roi, 5)/5 + 0.3*match + 0.1*urgency + 0.2*confidence)
	return clamp01(score)
}

// classifyDifficulty votes keyword buckets over the text. Ties break toward
// the harder bucket.
func classifyDifficulty(text string) bounty.Difficulty {
	easy := countMatches(text, easyWords)
	medium := countMatches(text, mediumWords)
	hard := countMatches(text, hardWords)

	if strings.Contains(text, "good first issue") {
		easy += 2
	}
	if strings.Contains(text, "breaking change") {
		hard += 2
	}

	switch {
	case hard >= medium && hard >= easy && hard > 0:
		return bounty.DifficultyHard
	case medium >= easy && medium > 0:
		return bounty.DifficultyMedium
	case easy > 0:
		return bounty.DifficultyEasy
	default:
		return bounty.DifficultyMedium
	}
}

// estimateHours scales the difficulty's base hours by content multipliers,
// floored at one hour.
func estimateHours(difficulty bounty.Difficulty, text string) float64 {
	hours := baseHours[difficulty]

	if isDocumentationOnly(text) {
		hours *= 0.5
	}
	if strings.Contains(text, "test") || strings.Contains(text, "coverage") {
		hours *= 1.5
	}
	if strings.Contains(text, "new feature") || strings.Contains(text, "feature") {
		hours *= 1.3
	}
	if strings.Contains(text, "research") || strings.Contains(text, "investigate") {
		hours *= 1.2
	}
	if strings.Contains(text, "multiple") || strings.Contains(text, "several") {
		hours *= 1.4
	}

	hours = math.Round(hours)
	if hours < 1 {
		hours = 1
	}
	return hours
}

func isDocumentationOnly(text string) bool {
	docs := strings.Contains(text, "documentation") || strings.Contains(text, "docs") || strings.Contains(text, "readme")
	code := strings.Contains(text, "implement") || strings.Contains(text, "fix") || strings.Contains(text, "refactor")
	return docs && !code
}

// skillsMatch blends declared-tag overlap with content-inferred matches.
// Declared carries weight 0.7, content 0.3; with no declared tags the match
// defaults to 0.5.
func skillsMatch(b *bounty.Bounty, text string, skills bounty.SkillVector) float64 {
	declared := -1.0
	if len(b.Skills) > 0 {
		sum := 0.0
		for _, tag := range b.Skills {
			sum += skills.Lookup(strings.ToLower(tag))
		}
		declared = sum / float64(len(b.Skills))
	}

	content := -1.0
	var contentSum float64
	var contentN int
	seen := map[string]bool{}
	for keyword, skill := range contentSkillWords {
		if strings.Contains(text, keyword) && !seen[skill] {
			seen[skill] = true
			contentSum += skills.Lookup(skill)
			contentN++
		}
	}
	if contentN > 0 {
		content = contentSum / float64(contentN)
	}

	switch {
	case declared >= 0 && content >= 0:
		return 0.7*declared + 0.3*content
	case declared >= 0:
		return declared
	default:
		return bounty.DefaultSkillProficiency
	}
}

// urgencyFor is a step function of days until the deadline.
func urgencyFor(b *bounty.Bounty, now time.Time) float64 {
	days, ok := b.DaysUntilDeadline(now)
	if !ok {
		return 0.5
	}
	switch {
	case days < 0:
		return 0
	case days < 1:
		return 0.9
	case days < 3:
		return 0.8
	case days < 7:
		return 0.7
	case days < 14:
		return 0.6
	case days < 30:
		return 0.5
	default:
		return 0.4
	}
}

// confidenceFor grades how much to trust this evaluation.
func confidenceFor(b *bounty.Bounty, match float64, now time.Time) float64 {
	c := 0.5 + 0.3*match
	if len(b.Description) > 200 {
		c += 0.1
	}
	if b.Source == bounty.SourceGitHub {
		c += 0.1 // structured source with machine-readable fields
	}
	if b.RewardAmount > 0 {
		c += 0.1
	}
	if now.Sub(b.DiscoveredAt) < time.Hour {
		c -= 0.1
	}
	return clamp01(c)
}

func countMatches(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
