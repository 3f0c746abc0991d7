package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "outlive"

// Metrics holds all agent metric instruments.
type Metrics struct {
	TurnsCompleted   metric.Int64Counter
	TurnsFailed      metric.Int64Counter
	ToolCalls        metric.Int64Counter
	BountiesScanned  metric.Int64Counter
	PaymentsDetected metric.Int64Counter
	TurnDuration     metric.Float64Histogram
	StableBalance    metric.Int64Gauge
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TurnsCompleted, err = meter.Int64Counter("outlive.turns.completed",
		metric.WithDescription("Number of decision turns completed"))
	if err != nil {
		return nil, err
	}

	m.TurnsFailed, err = meter.Int64Counter("outlive.turns.failed",
		metric.WithDescription("Number of decision turns that failed"))
	if err != nil {
		return nil, err
	}

	m.ToolCalls, err = meter.Int64Counter("outlive.toolcalls",
		metric.WithDescription("Number of tool calls dispatched"))
	if err != nil {
		return nil, err
	}

	m.BountiesScanned, err = meter.Int64Counter("outlive.bounties.scanned",
		metric.WithDescription("Number of bounties discovered by scans"))
	if err != nil {
		return nil, err
	}

	m.PaymentsDetected, err = meter.Int64Counter("outlive.payments.detected",
		metric.WithDescription("Number of incoming payments detected"))
	if err != nil {
		return nil, err
	}

	m.TurnDuration, err = meter.Float64Histogram("outlive.turn.duration_seconds",
		metric.WithDescription("Decision turn duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.StableBalance, err = meter.Int64Gauge("outlive.balance.stable",
		metric.WithDescription("Stable balance in smallest currency unit"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
