package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/dataask/dataask/core/domain/interfaces"
	sharedcontext "github.com/dataask/dataask/core/shared/context"
)

// WithTrace attaches the request and scheduled query ids carried by ctx
// and, when a valid span is active, its trace and span IDs.
func WithTrace(ctx context.Context, log interfaces.Logger) interfaces.Logger {
	if ctx == nil {
		return log
	}
	if id := sharedcontext.GetRequestID(ctx); id != "" {
		log = log.With("request_id", id)
	}
	if id := sharedcontext.GetScheduledQueryID(ctx); id != "" {
		log = log.With("scheduled_query_id", id)
	}
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return log
	}
	return log.
		With(AttrTraceID, spanCtx.TraceID().String()).
		With(AttrSpanID, spanCtx.SpanID().String())
}
