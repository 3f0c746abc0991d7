// Package agentstate defines the ephemeral per-cycle context snapshot the
// agent reasons over. A Context is derived fresh every cycle from external
// state and discarded after use; it is never persisted as-is.
package agentstate

import (
	"time"

	"github.com/outlive-sh/outlive/internal/domain/survival"
)

// Identity describes who the agent is.
type Identity struct {
	AgentID    string `json:"agent_id"`
	PublicKey  string `json:"public_key"`
	Generation int    `json:"generation"`
	ParentID   string `json:"parent_id,omitempty"`
}

// Survival is the funds snapshot feeding the tier machine.
type Survival struct {
	Tier             survival.Tier `json:"tier"`
	NativeBalance    uint64        `json:"native_balance"` // lamports
	StableBalance    uint64        `json:"stable_balance"` // USDC smallest unit
	NativeFormatted  string        `json:"native_formatted"`
	StableFormatted  string        `json:"stable_formatted"`
	DaysSurvived     int           `json:"days_survived"`
	LastEarningAt    *time.Time    `json:"last_earning_at,omitempty"`
}

// Environment describes the chain and wall-clock context.
type Environment struct {
	Network      string    `json:"network"`
	BlockHeight  uint64    `json:"block_height"`
	Time         time.Time `json:"time"`
	IsProduction bool      `json:"is_production"`
}

// TurnSummary is the condensed view of a recent turn used in prompting.
type TurnSummary struct {
	Thought     string `json:"thought"`
	Tool        string `json:"tool,omitempty"`
	Observation string `json:"observation"`
	Failed      bool   `json:"failed"`
}

// Context is the read-only snapshot one decision cycle reasons over.
type Context struct {
	Identity      Identity              `json:"identity"`
	Survival      Survival              `json:"survival"`
	Environment   Environment           `json:"environment"`
	Capabilities  survival.Capabilities `json:"capabilities"`
	RecentTurns   []TurnSummary         `json:"recent_turns"`
	Goals         []string              `json:"goals"`
	Threats       []string              `json:"threats"`
	Opportunities []string              `json:"opportunities"`
	Degraded      bool                  `json:"degraded"` // true when built from the failure fallback
}
