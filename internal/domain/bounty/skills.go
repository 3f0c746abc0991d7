package bounty

// DefaultSkillProficiency is the assumed proficiency for unrecognized tags.
const DefaultSkillProficiency = 0.5

// LearningIncrement is the per-tag nudge applied after a successful
// completion. Failures never adjust skills.
const LearningIncrement = 0.05

// SkillVector holds the agent's per-skill proficiency in [0,1]. It is
// persisted in the state store and read at evaluation time.
type SkillVector map[string]float64

// DefaultSkills returns the starting skill vector for a fresh agent.
func DefaultSkills() SkillVector {
	return SkillVector{
		"golang":        0.7,
		"typescript":    0.6,
		"python":        0.6,
		"rust":          0.4,
		"solidity":      0.3,
		"documentation": 0.7,
		"research":      0.6,
		"design":        0.4,
		"scraping":      0.6,
		"api":           0.7,
		"testing":       0.6,
	}
}

// Lookup returns the proficiency for a tag, defaulting unrecognized tags to
// DefaultSkillProficiency.
func (v SkillVector) Lookup(tag string) float64 {
	if p, ok := v[tag]; ok {
		return p
	}
	return DefaultSkillProficiency
}

// Nudge raises the proficiency of each tag by LearningIncrement, clamped at
// 1.0. Unrecognized tags are seeded at the default before the nudge.
func (v SkillVector) Nudge(tags []string) {
	for _, tag := range tags {
		p := v.Lookup(tag) + LearningIncrement
		if p > 1.0 {
			p = 1.0
		}
		v[tag] = p
	}
}
