package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// ErrInputBlocked is returned by the guarded handler when input risk is too
// high to forward to the reasoning backend.
var ErrInputBlocked = errors.New("input blocked by injection defense")

// RiskLevel grades analyzed input.
type RiskLevel string

const (
	RiskNone     RiskLevel = "none"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// InjectionAnalysis is the result of scoring one input text.
type InjectionAnalysis struct {
	IsInjection       bool      `json:"is_injection"`
	Confidence        float64   `json:"confidence"`
	MatchedPatterns   []string  `json:"matched_patterns,omitempty"`
	SuspiciousSignals []string  `json:"suspicious_signals,omitempty"`
	RiskLevel         RiskLevel `json:"risk_level"`
	Recommendation    string    `json:"recommendation"`
}

// Risk score cutoffs. Medium and above counts as an injection.
const (
	scoreCritical = 15
	scoreHigh     = 10
	scoreMedium   = 6
	scoreFlagged  = 3
)

// maxInputLen bounds input before sanitization truncates it.
const maxInputLen = 4000

// patternFamily is one weighted regex family of injection indicators.
type patternFamily struct {
	name   string
	weight int
	re     *regexp.Regexp
}

var injectionFamilies = []patternFamily{
	{
		name:   "command_override",
		weight: 5,
		re:     regexp.MustCompile(`(?i)(ignore|disregard|forget)\s+(all\s+)?(previous|prior|above|earlier)\s+(instructions|prompts|rules|directives)`),
	},
	{
		name:   "role_hijack",
		weight: 4,
		re:     regexp.MustCompile(`(?i)(you\s+are\s+now|pretend\s+(to\s+be|you\s+are)|act\s+as\s+if|new\s+persona|roleplay\s+as)`),
	},
	{
		name:   "constitution_override",
		weight: 5,
		re:     regexp.MustCompile(`(?i)(override|bypass|disable|remove)\s+(your\s+)?(constitution|safety|guardrails|restrictions|constraints)`),
	},
	{
		name:   "financial_urgency",
		weight: 4,
		re:     regexp.MustCompile(`(?i)(send|transfer|move)\s+(all|everything|your\s+entire)\s+.{0,20}(funds|balance|wallet|money|usdc|sol)`),
	},
	{
		name:   "encoding_obfuscation",
		weight: 3,
		re:     regexp.MustCompile(`(\\x[0-9a-fA-F]{2}){4,}|(\\u[0-9a-fA-F]{4}){3,}|[A-Za-z0-9+/]{60,}={0,2}`),
	},
}

// suspiciousPhrases are exact-substring indicators worth a small fixed score.
var suspiciousPhrases = []string{
	"system prompt",
	"developer mode",
	"jailbreak",
	"do anything now",
	"without any restrictions",
	"reveal your instructions",
	"private key",
	"seed phrase",
}

var financialTerms = []string{"wallet", "funds", "balance", "usdc", "sol", "transfer", "payment"}

var urgencyTerms = []string{"immediately", "urgent", "right now", "before it's too late", "last chance", "act fast"}

// hasRepeatedRun reports whether text contains a run of six or more
// identical runes.
func hasRepeatedRun(text string) bool {
	var (
		prev rune
		run  int
	)
	for _, r := range text {
		if r == prev {
			run++
			if run >= 6 {
				return true
			}
			continue
		}
		prev = r
		run = 1
	}
	return false
}

// DefenseService scores agent input for prompt-injection attempts and guards
// the reasoning call.
type DefenseService struct{}

// NewDefenseService creates a DefenseService.
func NewDefenseService() *DefenseService {
	return &DefenseService{}
}

// Analyze scores the text and grades its risk. It never fails; empty input
// scores zero.
func (s *DefenseService) Analyze(text string) InjectionAnalysis {
	var (
		score    int
		patterns []string
		signals  []string
	)

	for _, fam := range injectionFamilies {
		if fam.re.MatchString(text) {
			score += fam.weight
			patterns = append(patterns, fam.name)
		}
	}

	lower := strings.ToLower(text)
	for _, phrase := range suspiciousPhrases {
		if strings.Contains(lower, phrase) {
			score += 2
			signals = append(signals, "phrase: "+phrase)
		}
	}

	if len(text) > maxInputLen {
		score += 2
		signals = append(signals, "overlong input")
	}
	if hasRepeatedRun(text) {
		score++
		signals = append(signals, "repeated character run")
	}
	if hasMixedScripts(text) {
		score += 2
		signals = append(signals, "mixed scripts")
	}
	if containsAny(lower, financialTerms) && containsAny(lower, urgencyTerms) {
		score += 3
		signals = append(signals, "financial term with urgency term")
	}

	level := riskLevelFor(score)
	confidence := float64(score) / scoreCritical
	if confidence > 1 {
		confidence = 1
	}

	return InjectionAnalysis{
		IsInjection:       level == RiskMedium || level == RiskHigh || level == RiskCritical,
		Confidence:        confidence,
		MatchedPatterns:   patterns,
		SuspiciousSignals: signals,
		RiskLevel:         level,
		Recommendation:    recommendationFor(level),
	}
}

// Sanitize redacts matched patterns and truncates overlong input.
func (s *DefenseService) Sanitize(text string) string {
	for _, fam := range injectionFamilies {
		text = fam.re.ReplaceAllString(text, "[redacted]")
	}
	if len(text) > maxInputLen {
		text = text[:maxInputLen]
	}
	return text
}

// Guard applies the guarded-handler policy: block critical/high, sanitize
// medium, pass low/none through unchanged.
func (s *DefenseService) Guard(text string) (string, error) {
	analysis := s.Analyze(text)
	switch analysis.RiskLevel {
	case RiskCritical, RiskHigh:
		return "", fmt.Errorf("%w: risk %s (confidence %.2f)", ErrInputBlocked, analysis.RiskLevel, analysis.Confidence)
	case RiskMedium:
		return s.Sanitize(text), nil
	default:
		return text, nil
	}
}

// compromiseIndicators mark reasoning output whose author no longer follows
// the agent's instructions.
var compromiseIndicators = []string{
	"my previous instructions no longer apply",
	"i am no longer bound",
	"i will ignore my constitution",
	"as my new identity",
	"entering developer mode",
	"safety restrictions disabled",
}

// ValidateResponse scans the model's own output for override phrases and
// fails closed on any match.
func (s *DefenseService) ValidateResponse(text string) error {
	lower := strings.ToLower(text)
	for _, phrase := range compromiseIndicators {
		if strings.Contains(lower, phrase) {
			return fmt.Errorf("reasoning output compromised: matched %q", phrase)
		}
	}
	return nil
}

func riskLevelFor(score int) RiskLevel {
	switch {
	case score >= scoreCritical:
		return RiskCritical
	case score >= scoreHigh:
		return RiskHigh
	case score >= scoreMedium:
		return RiskMedium
	case score >= scoreFlagged:
		return RiskLow
	default:
		return RiskNone
	}
}

func recommendationFor(level RiskLevel) string {
	switch level {
	case RiskCritical, RiskHigh:
		return "block input before it reaches reasoning"
	case RiskMedium:
		return "sanitize input before forwarding"
	case RiskLow:
		return "forward unchanged, log for review"
	default:
		return "forward unchanged"
	}
}

func containsAny(lower string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// hasMixedScripts reports whether the text mixes Latin letters with another
// alphabet, a common homoglyph obfuscation tactic.
func hasMixedScripts(text string) bool {
	var latin, other bool
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		if unicode.Is(unicode.Latin, r) {
			latin = true
		} else {
			other = true
		}
		if latin && other {
			return true
		}
	}
	return false
}
