package observability

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Error classification attribute values recorded on failed spans.
const (
	// ErrTypeResolution marks a branch or ref that failed to resolve.
	ErrTypeResolution = "resolution"
	// ErrTypeSourceUnavailable marks the object source being unusable at all.
	ErrTypeSourceUnavailable = "source_unavailable"
	// ErrTypeCancelled marks a run terminated by its context.
	ErrTypeCancelled = "cancelled"
	// ErrTypeInternal marks an unexpected internal failure.
	ErrTypeInternal = "internal"
)

// RecordSpanError records err on span with classification attributes and
// sets the span status to error.
func RecordSpanError(span trace.Span, err error, errType string) {
	if err == nil {
		return
	}

	span.RecordError(err, trace.WithAttributes(
		attribute.String("error.type", errType),
	))
	span.SetStatus(codes.Error, err.Error())
}
