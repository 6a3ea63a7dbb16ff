package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "warden"

// StartDecisionSpan starts a span for one authorization decision.
func StartDecisionSpan(ctx context.Context, agentID, action, resource string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "decision",
		trace.WithAttributes(
			attribute.String("agent.id", agentID),
			attribute.String("request.action", action),
			attribute.String("request.resource", resource),
		),
	)
}

// StartResolutionSpan starts a span for a human resolving an escalation.
func StartResolutionSpan(ctx context.Context, requestID, reviewerID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "escalation.resolve",
		trace.WithAttributes(
			attribute.String("escalation.request_id", requestID),
			attribute.String("escalation.reviewer_id", reviewerID),
		),
	)
}
