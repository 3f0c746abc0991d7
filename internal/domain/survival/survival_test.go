package survival_test

import (
	"testing"
	"time"

	"github.com/outlive-sh/outlive/internal/domain/survival"
)

var testThresholds = survival.Thresholds{
	Normal:     100_000_000, // 100 USDC
	LowCompute: 20_000_000,
	Critical:   5_000_000,
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		name    string
		balance uint64
		want    survival.Tier
	}{
		{"zero balance is dead", 0, survival.TierDead},
		{"below critical is dead", 4_999_999, survival.TierDead},
		{"critical threshold inclusive", 5_000_000, survival.TierCritical},
		{"between critical and low", 19_999_999, survival.TierCritical},
		{"low compute threshold inclusive", 20_000_000, survival.TierLowCompute},
		{"below normal", 99_999_999, survival.TierLowCompute},
		{"normal threshold inclusive", 100_000_000, survival.TierNormal},
		{"far above normal", 10_000_000_000, survival.TierNormal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := survival.TierFor(tc.balance, testThresholds)
			if got != tc.want {
				t.Errorf("TierFor(%d) = %s, want %s", tc.balance, got, tc.want)
			}
		})
	}
}

// Tier must be a total function that never gains capability as balance drops.
func TestTierMonotonicInBalance(t *testing.T) {
	balances := []uint64{0, 1, 4_999_999, 5_000_000, 19_999_999, 20_000_000, 99_999_999, 100_000_000, 1 << 50}
	prevRank := -1
	for i := len(balances) - 1; i >= 0; i-- {
		tier := survival.TierFor(balances[i], testThresholds)
		if tier.Rank() < prevRank {
			t.Fatalf("capability increased as balance decreased: balance %d -> %s", balances[i], tier)
		}
		prevRank = tier.Rank()
	}
}

func TestCapabilitiesTable(t *testing.T) {
	tests := []struct {
		tier survival.Tier
		want survival.Capabilities
	}{
		{survival.TierNormal, survival.Capabilities{CanTrade: true, CanSelfModify: true, CanReplicate: true, ModelTier: survival.ModelFrontier}},
		{survival.TierLowCompute, survival.Capabilities{CanTrade: true, ModelTier: survival.ModelEfficient}},
		{survival.TierCritical, survival.Capabilities{ModelTier: survival.ModelMinimal}},
		{survival.TierDead, survival.Capabilities{ModelTier: survival.ModelMinimal}},
	}

	for _, tc := range tests {
		got := survival.CapabilitiesFor(tc.tier)
		if got != tc.want {
			t.Errorf("CapabilitiesFor(%s) = %+v, want %+v", tc.tier, got, tc.want)
		}
	}
}

func TestDeadTierAllCapabilitiesOff(t *testing.T) {
	caps := survival.CapabilitiesFor(survival.TierFor(0, testThresholds))
	if caps.CanTrade || caps.CanSelfModify || caps.CanReplicate {
		t.Fatalf("dead tier must gate all capabilities: %+v", caps)
	}
	if caps.ModelTier != survival.ModelMinimal {
		t.Fatalf("dead tier model = %s, want minimal", caps.ModelTier)
	}
}

func TestCadenceIntervalFor(t *testing.T) {
	c := survival.Cadence{
		Normal:     5 * time.Minute,
		LowCompute: 15 * time.Minute,
		Critical:   60 * time.Minute,
	}

	if got := c.IntervalFor(survival.TierNormal); got != 5*time.Minute {
		t.Errorf("normal interval = %v", got)
	}
	// Dead shares the slowest interval with critical unless overridden.
	if got := c.IntervalFor(survival.TierDead); got != 60*time.Minute {
		t.Errorf("dead interval = %v, want critical's %v", got, 60*time.Minute)
	}

	c.Dead = 2 * time.Hour
	if got := c.IntervalFor(survival.TierDead); got != 2*time.Hour {
		t.Errorf("overridden dead interval = %v", got)
	}
}

func TestWorseThan(t *testing.T) {
	if !survival.TierDead.WorseThan(survival.TierCritical) {
		t.Error("dead should be worse than critical")
	}
	if survival.TierNormal.WorseThan(survival.TierLowCompute) {
		t.Error("normal should not be worse than low_compute")
	}
}
