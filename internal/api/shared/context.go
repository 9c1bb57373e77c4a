// Package shared holds the request context keys and the JSON request and
// response helpers used by every API handler.
package shared

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type of the request context keys set by the API.
type ContextKey string

const (
	// SubjectContextKey holds the subject of the verified admin token.
	SubjectContextKey ContextKey = "subject"
	// TraceIDKey holds the trace ID of the request.
	TraceIDKey ContextKey = "traceID"
)

// SetTraceID stores traceID in ctx, generating one when it is empty.
func SetTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		traceID = uuid.NewString()
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID returns the trace ID of ctx or an empty string.
func GetTraceID(ctx context.Context) string {
	traceID, _ := ctx.Value(TraceIDKey).(string)
	return traceID
}

// GetSubject returns the authenticated subject of ctx.
func GetSubject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(SubjectContextKey).(string)
	return subject, ok && subject != ""
}
