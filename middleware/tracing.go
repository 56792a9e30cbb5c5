package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for provisio tracing.
const tracerName = "github.com/provisio/provisio"

// Tracing returns middleware that wraps step execution in an OpenTelemetry span.
// If no TracerProvider is configured globally, the default noop tracer is used
// and this middleware becomes a pass-through with zero overhead.
//
// Span attributes include: provisio.workflow.id, provisio.attempt.id,
// provisio.step.name, provisio.step.index, provisio.resumed.
// On error, the span status is set to codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, s *StepInfo, next Handler) error {
		ctx, span := tracer.Start(ctx, "provisio.step.execute",
			trace.WithAttributes(
				attribute.String("provisio.workflow.id", s.WorkflowID),
				attribute.String("provisio.attempt.id", s.AttemptID.String()),
				attribute.String("provisio.step.name", s.Name),
				attribute.Int("provisio.step.index", s.Index),
				attribute.Bool("provisio.resumed", s.Resumed),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
