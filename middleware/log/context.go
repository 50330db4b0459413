package logger

import (
	"context"

	"github.com/google/uuid"
)

// TraceIDHeader carries the trace ID between clients and the server.
const TraceIDHeader = "X-Request-ID"

// WithTraceID stores traceID in ctx, generating a UUID v4 when it is empty.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		traceID = NewTraceID()
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID returns the trace ID stored in ctx, or "".
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// NewTraceID generates a new trace ID using UUID v4.
func NewTraceID() string {
	return uuid.New().String()
}
