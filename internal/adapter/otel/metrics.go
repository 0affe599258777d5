package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "chorus"

// Metrics holds all Chorus metric instruments.
type Metrics struct {
	GenerationsStarted   metric.Int64Counter
	GenerationsCompleted metric.Int64Counter
	GenerationsFailed    metric.Int64Counter
	MessagesQueued       metric.Int64Counter
	Restarts             metric.Int64Counter
	ToolCalls            metric.Int64Counter
	GenerationDuration   metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.GenerationsStarted, err = meter.Int64Counter("chorus.generations.started",
		metric.WithDescription("Number of response generations started"))
	if err != nil {
		return nil, err
	}

	m.GenerationsCompleted, err = meter.Int64Counter("chorus.generations.completed",
		metric.WithDescription("Number of response generations completed"))
	if err != nil {
		return nil, err
	}

	m.GenerationsFailed, err = meter.Int64Counter("chorus.generations.failed",
		metric.WithDescription("Number of response generations failed"))
	if err != nil {
		return nil, err
	}

	m.MessagesQueued, err = meter.Int64Counter("chorus.messages.queued",
		metric.WithDescription("Number of messages queued behind an in-flight generation"))
	if err != nil {
		return nil, err
	}

	m.Restarts, err = meter.Int64Counter("chorus.context.restarts",
		metric.WithDescription("Number of context window restarts"))
	if err != nil {
		return nil, err
	}

	m.ToolCalls, err = meter.Int64Counter("chorus.toolcalls",
		metric.WithDescription("Number of tool calls executed"))
	if err != nil {
		return nil, err
	}

	m.GenerationDuration, err = meter.Float64Histogram("chorus.generation.duration_seconds",
		metric.WithDescription("Generation duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
