// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them; services read them. Keeping
// the package free of net/http lets domain code import only what it needs.
package requestcontext

import "context"

type (
	traceIDKey   struct{}
	requestIDKey struct{}
	platformKey  struct{}
)

// TraceID retrieves the pipeline trace ID grouping all audit events of one
// logical request. Empty if not set.
func TraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithTraceID injects a trace ID into the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// RequestID retrieves the HTTP correlation ID. Empty if not set.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// ClientPlatform retrieves the parsed client platform string ("browser/os"),
// set by the metadata middleware. Never a raw User-Agent.
func ClientPlatform(ctx context.Context) string {
	if v, ok := ctx.Value(platformKey{}).(string); ok {
		return v
	}
	return ""
}

// WithClientPlatform injects the parsed client platform into the context.
func WithClientPlatform(ctx context.Context, platform string) context.Context {
	return context.WithValue(ctx, platformKey{}, platform)
}
