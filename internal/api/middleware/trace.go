// Package middleware contains the HTTP middleware of the admin API.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/quill/internal/api/shared"
	"github.com/phrazzld/quill/internal/platform/logger"
)

// TraceHeader carries the trace ID in requests and responses.
const TraceHeader = "X-Trace-ID"

// Trace assigns every request a trace ID, echoes it in the response
// headers and attaches a request-scoped logger to the context.
func Trace(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.SetTraceID(r.Context(), r.Header.Get(TraceHeader))
			traceID := shared.GetTraceID(ctx)
			w.Header().Set(TraceHeader, traceID)

			log := base.With(slog.String("trace_id", traceID))
			log.Debug("request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			next.ServeHTTP(w, r.WithContext(logger.WithContext(ctx, log)))
		})
	}
}
