package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "chorus"

// StartGenerationSpan starts a span for one response generation.
func StartGenerationSpan(ctx context.Context, topicID, modelID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "generation",
		trace.WithAttributes(
			attribute.String("topic.id", topicID),
			attribute.String("model.id", modelID),
		),
	)
}

// StartToolCallSpan starts a span for a tool call within a generation.
func StartToolCallSpan(ctx context.Context, tool string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "toolcall",
		trace.WithAttributes(
			attribute.String("toolcall.tool", tool),
		),
	)
}
