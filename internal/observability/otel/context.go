package otel

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

type handleKey struct{}

// Handle bundles the tracer and provider shutdown for one driftd
// invocation. Spans hang off it for the run and each host cycle.
type Handle struct {
	Tracer   trace.Tracer
	Shutdown func(context.Context) error
}

// WithHandle stores the tracing handle in context.
func WithHandle(ctx context.Context, h *Handle) context.Context {
	return context.WithValue(ctx, handleKey{}, h)
}

// From retrieves the tracing handle from context. Returns nil when
// tracing is disabled (--otel not set), which callers treat as
// "skip the span".
func From(ctx context.Context) *Handle {
	h, _ := ctx.Value(handleKey{}).(*Handle)
	return h
}
