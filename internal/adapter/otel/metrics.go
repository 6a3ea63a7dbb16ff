package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "warden"

// Metrics holds all authorization metric instruments.
type Metrics struct {
	DecisionsAllowed    metric.Int64Counter
	DecisionsDenied     metric.Int64Counter
	DecisionsEscalated  metric.Int64Counter
	EscalationsResolved metric.Int64Counter
	DecisionDuration    metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.DecisionsAllowed, err = meter.Int64Counter("warden.decisions.allowed",
		metric.WithDescription("Number of allowed agent actions"))
	if err != nil {
		return nil, err
	}

	m.DecisionsDenied, err = meter.Int64Counter("warden.decisions.denied",
		metric.WithDescription("Number of denied agent actions"))
	if err != nil {
		return nil, err
	}

	m.DecisionsEscalated, err = meter.Int64Counter("warden.decisions.escalated",
		metric.WithDescription("Number of actions escalated to human review"))
	if err != nil {
		return nil, err
	}

	m.EscalationsResolved, err = meter.Int64Counter("warden.escalations.resolved",
		metric.WithDescription("Number of escalations resolved by a human"))
	if err != nil {
		return nil, err
	}

	m.DecisionDuration, err = meter.Float64Histogram("warden.decision.duration_seconds",
		metric.WithDescription("Authorization decision latency in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
