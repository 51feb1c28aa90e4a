package tracing

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// PropagateToLogger adds the request identifiers carried by ctx to logger.
// Empty identifiers are omitted; span_id is added when ctx holds a sampled span.
func PropagateToLogger(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	fields := logger.With()
	for _, f := range []struct{ key, value string }{
		{"trace_id", tc.TraceID},
		{"client_id", tc.ClientID},
		{"request_id", tc.RequestID},
		{"exec_id", tc.ExecID},
	} {
		if f.value != "" {
			fields = fields.Str(f.key, f.value)
		}
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() && sc.IsSampled() {
		fields = fields.Str("span_id", sc.SpanID().String())
	}

	return fields.Logger()
}

// LoggerFromContext returns baseLogger enriched with the identifiers in ctx
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	return PropagateToLogger(ctx, baseLogger)
}
