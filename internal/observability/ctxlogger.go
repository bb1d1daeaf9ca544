package observability

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// WithTrace returns a zerolog.Logger enriched with trace_id/span_id from ctx,
// if ctx carries a span context with a trace id. Falls back to the global
// logger otherwise.
func WithTrace(ctx context.Context) *zerolog.Logger {
	l := log.Logger
	if ctx == nil {
		return &l
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		l = l.With().Str("trace_id", sc.TraceID().String()).Logger()
		if sc.HasSpanID() {
			l = l.With().Str("span_id", sc.SpanID().String()).Logger()
		}
	}
	return &l
}

// WithCorrelation enriches a logger with the correlation id threading an
// event chain, so every log line for one transaction can be grepped together.
func WithCorrelation(ctx context.Context, correlationID string) *zerolog.Logger {
	l := WithTrace(ctx).With().Str("correlation_id", correlationID).Logger()
	return &l
}
