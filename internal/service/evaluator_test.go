package service

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/outlive-sh/outlive/internal/domain/bounty"
)

func fixedNow() time.Time {
	return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
}

func testEvaluator(store *fakeStore) *EvaluatorService {
	svc := NewEvaluatorService(store)
	svc.now = fixedNow
	return svc
}

// Scenario: reward 1,000,000 / cost 500,000 gives ROI 2.0; with easy
// difficulty, match 0.9, urgency 0.7, confidence 0.8 the score lands at 0.66
// and the bounty is recommended.
func TestComputeScoreReference(t *testing.T) {
	score := computeScore(bounty.DifficultyEasy, 2.0, 0.9, 0.7, 0.8)
	if math.Abs(score-0.66) > 1e-9 {
		t.Fatalf("score = %v, want 0.66", score)
	}
	roi := 2.0
	if !(score > recommendScore && roi > recommendROI && 0.9 > recommendMatch) {
		t.Fatal("reference case must be recommended")
	}
}

// The recommendation thresholds are strict: exactly-at-boundary values fail.
func TestRecommendedBoundaryExclusive(t *testing.T) {
	cases := []struct {
		score, roi, match float64
		want              bool
	}{
		{0.6, 2.0, 0.9, false},  // score at boundary
		{0.66, 1.2, 0.9, false}, // roi at boundary
		{0.66, 2.0, 0.6, false}, // match at boundary
		{0.61, 1.21, 0.61, true},
	}
	for _, tc := range cases {
		got := tc.score > recommendScore && tc.roi > recommendROI && tc.match > recommendMatch
		if got != tc.want {
			t.Errorf("recommended(%v,%v,%v) = %t, want %t", tc.score, tc.roi, tc.match, got, tc.want)
		}
	}
}

// Holding everything else fixed, a higher reward never lowers the score.
func TestScoreMonotonicInReward(t *testing.T) {
	svc := testEvaluator(newFakeStore())
	skills := bounty.DefaultSkills()

	base := bounty.Bounty{
		ID:           "github:x/y#1",
		Source:       bounty.SourceGitHub,
		Title:        "Implement retry middleware",
		Description:  "Add an endpoint retry layer.",
		Skills:       []string{"golang", "api"},
		Status:       bounty.StatusOpen,
		DiscoveredAt: fixedNow().Add(-2 * time.Hour),
	}

	prev := -1.0
	for _, reward := range []uint64{0, 10_000_000, 100_000_000, 1_000_000_000} {
		b := base
		b.RewardAmount = reward
		// Reward also feeds confidence; fix it by keeping reward nonzero
		// except for the first sample, which may only score lower.
		ev := svc.Evaluate(&b, skills)
		if ev.Score < prev {
			t.Fatalf("score dropped to %v at reward %d", ev.Score, reward)
		}
		prev = ev.Score
	}
}

func TestClassifyDifficulty(t *testing.T) {
	cases := []struct {
		text string
		want bounty.Difficulty
	}{
		{"fix a small typo in the readme", bounty.DifficultyEasy},
		{"implement a new endpoint and integrate billing", bounty.DifficultyMedium},
		{"redesign the storage architecture for concurrency", bounty.DifficultyHard},
		{"this is a breaking change to a simple api", bounty.DifficultyHard},
		{"nothing indicative here", bounty.DifficultyMedium},
		// equal votes tie-break toward hard
		{"simple security fix", bounty.DifficultyHard},
	}
	for _, tc := range cases {
		if got := classifyDifficulty(tc.text); got != tc.want {
			t.Errorf("classifyDifficulty(%q) = %s, want %s", tc.text, got, tc.want)
		}
	}
}

func TestEstimateHours(t *testing.T) {
	// documentation-only halves the easy base of 2h, floored at 1h
	if got := estimateHours(bounty.DifficultyEasy, "update the readme docs"); got != 1 {
		t.Errorf("docs-only hours = %v, want 1", got)
	}
	// testing multiplier on medium base: 8 * 1.5 = 12
	if got := estimateHours(bounty.DifficultyMedium, "increase coverage of the store"); got != 12 {
		t.Errorf("testing hours = %v, want 12", got)
	}
	// several components: 24 * 1.4 = 33.6 -> 34
	if got := estimateHours(bounty.DifficultyHard, "touch several services"); got != 34 {
		t.Errorf("multi-component hours = %v, want 34", got)
	}
}

func TestSkillsMatchDefaults(t *testing.T) {
	skills := bounty.DefaultSkills()
	b := &bounty.Bounty{Title: "Opaque task"}
	if got := skillsMatch(b, "opaque task", skills); got != 0.5 {
		t.Errorf("no-tags match = %v, want 0.5", got)
	}
}

func TestSkillsMatchBlend(t *testing.T) {
	skills := bounty.SkillVector{"golang": 1.0, "documentation": 0.5}
	b := &bounty.Bounty{Skills: []string{"golang"}}
	// declared 1.0, content-inferred documentation 0.5: 0.7*1.0 + 0.3*0.5
	got := skillsMatch(b, "write docs for the module", skills)
	if math.Abs(got-0.85) > 1e-9 {
		t.Errorf("blend = %v, want 0.85", got)
	}
}

func TestUrgencySteps(t *testing.T) {
	now := fixedNow()
	mk := func(d time.Duration) *bounty.Bounty {
		dl := now.Add(d)
		return &bounty.Bounty{Deadline: &dl}
	}
	cases := []struct {
		b    *bounty.Bounty
		want float64
	}{
		{&bounty.Bounty{}, 0.5},
		{mk(-time.Hour), 0},
		{mk(12 * time.Hour), 0.9},
		{mk(2 * 24 * time.Hour), 0.8},
		{mk(5 * 24 * time.Hour), 0.7},
		{mk(10 * 24 * time.Hour), 0.6},
		{mk(20 * 24 * time.Hour), 0.5},
		{mk(60 * 24 * time.Hour), 0.4},
	}
	for i, tc := range cases {
		if got := urgencyFor(tc.b, now); got != tc.want {
			t.Errorf("case %d: urgency = %v, want %v", i, got, tc.want)
		}
	}
}

func TestConfidenceFreshDiscoveryPenalty(t *testing.T) {
	now := fixedNow()
	fresh := &bounty.Bounty{DiscoveredAt: now.Add(-10 * time.Minute), RewardAmount: 1}
	aged := &bounty.Bounty{DiscoveredAt: now.Add(-3 * time.Hour), RewardAmount: 1}
	if confidenceFor(fresh, 0.5, now) >= confidenceFor(aged, 0.5, now) {
		t.Error("fresh discovery should lower confidence")
	}
}

func TestEvaluateManySortsDescending(t *testing.T) {
	svc := testEvaluator(newFakeStore())
	skills := bounty.DefaultSkills()

	bounties := []bounty.Bounty{
		{ID: "b-low", Source: bounty.SourceWorkboard, Title: "redesign distributed architecture", RewardAmount: 1_000_000, DiscoveredAt: fixedNow().Add(-2 * time.Hour)},
		{ID: "b-high", Source: bounty.SourceGitHub, Title: "fix small typo in readme", Skills: []string{"documentation"}, RewardAmount: 500_000_000, DiscoveredAt: fixedNow().Add(-2 * time.Hour)},
	}

	evals := svc.EvaluateMany(bounties, skills)
	if len(evals) != 2 {
		t.Fatalf("got %d evaluations", len(evals))
	}
	if evals[0].Score < evals[1].Score {
		t.Errorf("not sorted: %v then %v", evals[0].Score, evals[1].Score)
	}
	if evals[0].BountyID != "b-high" {
		t.Errorf("expected b-high first, got %s", evals[0].BountyID)
	}
}

func TestRecordSuccessNudgesAndPersists(t *testing.T) {
	store := newFakeStore()
	svc := testEvaluator(store)
	ctx := context.Background()

	b := &bounty.Bounty{ID: "github:x/y#2", Skills: []string{"golang", "newskill"}}
	if err := svc.RecordSuccess(ctx, b); err != nil {
		t.Fatalf("record success: %v", err)
	}

	data, ok := store.state[skillStateID]
	if !ok {
		t.Fatal("skill vector not persisted")
	}
	var v bounty.SkillVector
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatal(err)
	}
	if math.Abs(v["golang"]-0.75) > 1e-9 {
		t.Errorf("golang = %v, want 0.75", v["golang"])
	}
	if math.Abs(v["newskill"]-0.55) > 1e-9 {
		t.Errorf("newskill = %v, want 0.55", v["newskill"])
	}

	// The reloaded vector must reflect the update.
	reloaded := svc.Skills(ctx)
	if reloaded["golang"] != v["golang"] {
		t.Error("Skills did not read back the persisted vector")
	}
}

func TestSkillsFallsBackToDefaults(t *testing.T) {
	svc := testEvaluator(newFakeStore())
	v := svc.Skills(context.Background())
	if v.Lookup("golang") != 0.7 {
		t.Errorf("default golang = %v", v.Lookup("golang"))
	}
}
