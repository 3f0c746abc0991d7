package bounty

// Difficulty buckets a bounty's estimated effort.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Evaluation is the derived scoring of a bounty against the agent's current
// skill vector. It is recomputed on demand and never persisted independently.
type Evaluation struct {
	BountyID       string     `json:"bounty_id"`
	Score          float64    `json:"score"` // 0..1
	Difficulty     Difficulty `json:"difficulty"`
	EstimatedHours float64    `json:"estimated_hours"`
	EstimatedCost  uint64     `json:"estimated_cost"` // smallest currency unit
	ROI            float64    `json:"roi"`
	SkillsMatch    float64    `json:"skills_match"` // 0..1
	Urgency        float64    `json:"urgency"`      // 0..1
	Confidence     float64    `json:"confidence"`   // 0..1
	Reasoning      []string   `json:"reasoning"`
	Recommended    bool       `json:"recommended"`
}
