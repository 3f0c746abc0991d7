// Package survival defines the survival tier state machine: the mapping from
// available funds to an operating tier, and from tier to the capability set
// and heartbeat cadence the agent runs with.
package survival

import "time"

// Tier is the discrete operating mode derived from available funds, ordered
// by descending capability.
type Tier string

const (
	TierNormal     Tier = "normal"
	TierLowCompute Tier = "low_compute"
	TierCritical   Tier = "critical"
	TierDead       Tier = "dead"
)

// Rank returns the tier's position in capability order: 0 = most capable.
func (t Tier) Rank() int {
	switch t {
	case TierNormal:
		return 0
	case TierLowCompute:
		return 1
	case TierCritical:
		return 2
	default:
		return 3
	}
}

// WorseThan reports whether t has less capability than other.
func (t Tier) WorseThan(other Tier) bool {
	return t.Rank() > other.Rank()
}

// Thresholds holds the USDC balance cutoffs for each tier, in the token's
// smallest unit. Invariant: Normal > LowCompute > Critical > Dead (= 0).
type Thresholds struct {
	Normal     uint64 `yaml:"normal"`
	LowCompute uint64 `yaml:"low_compute"`
	Critical   uint64 `yaml:"critical"`
}

// TierFunc maps a balance to a tier. The default is the memoryless inclusive
// comparison; callers can substitute a variant (e.g. with a hysteresis band)
// without touching the rest of the machine.
type TierFunc func(balance uint64, th Thresholds) Tier

// TierFor is the default TierFunc: the highest tier whose threshold is less
// than or equal to the balance. Thresholds are inclusive, so a balance exactly
// at Normal yields TierNormal. Zero balance yields TierDead.
func TierFor(balance uint64, th Thresholds) Tier {
	switch {
	case balance >= th.Normal:
		return TierNormal
	case balance >= th.LowCompute:
		return TierLowCompute
	case balance >= th.Critical:
		return TierCritical
	default:
		return TierDead
	}
}

// ModelTier names the class of reasoning model a tier is allowed to use.
type ModelTier string

const (
	ModelFrontier  ModelTier = "frontier"
	ModelEfficient ModelTier = "efficient"
	ModelMinimal   ModelTier = "minimal"
)

// Capabilities is the set of gated abilities for a tier. It is always
// recomputed from the tier, never stored.
type Capabilities struct {
	CanTrade      bool      `json:"can_trade"`
	CanSelfModify bool      `json:"can_self_modify"`
	CanReplicate  bool      `json:"can_replicate"`
	ModelTier     ModelTier `json:"model_tier"`
}

// CapabilitiesFor returns the capability set for a tier.
func CapabilitiesFor(t Tier) Capabilities {
	switch t {
	case TierNormal:
		return Capabilities{CanTrade: true, CanSelfModify: true, CanReplicate: true, ModelTier: ModelFrontier}
	case TierLowCompute:
		return Capabilities{CanTrade: true, ModelTier: ModelEfficient}
	default:
		return Capabilities{ModelTier: ModelMinimal}
	}
}

// Cadence holds the heartbeat interval per tier.
type Cadence struct {
	Normal     time.Duration `yaml:"normal"`
	LowCompute time.Duration `yaml:"low_compute"`
	Critical   time.Duration `yaml:"critical"`
	// Dead defaults to the Critical interval when zero: the reference
	// behavior shares the slowest cadence between the two bottom tiers.
	Dead time.Duration `yaml:"dead"`
}

// IntervalFor returns the heartbeat interval for a tier.
func (c Cadence) IntervalFor(t Tier) time.Duration {
	switch t {
	case TierNormal:
		return c.Normal
	case TierLowCompute:
		return c.LowCompute
	case TierCritical:
		return c.Critical
	default:
		if c.Dead > 0 {
			return c.Dead
		}
		return c.Critical
	}
}
