package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "outlive"

// StartTurnSpan starts a span for one decision turn.
func StartTurnSpan(ctx context.Context, turnID, tier string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "turn",
		trace.WithAttributes(
			attribute.String("turn.id", turnID),
			attribute.String("survival.tier", tier),
		),
	)
}

// StartToolCallSpan starts a span for a tool call within a turn.
func StartToolCallSpan(ctx context.Context, turnID, tool string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "toolcall",
		trace.WithAttributes(
			attribute.String("turn.id", turnID),
			attribute.String("toolcall.tool", tool),
		),
	)
}

// StartExecutionSpan starts a span for a bounty execution.
func StartExecutionSpan(ctx context.Context, bountyID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "bounty.execute",
		trace.WithAttributes(
			attribute.String("bounty.id", bountyID),
		),
	)
}
