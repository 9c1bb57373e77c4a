package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/quill/internal/api/shared"
	"github.com/phrazzld/quill/internal/platform/logger"
	"github.com/phrazzld/quill/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		header      string
		validateErr error
		wantStatus  int
		wantSubject string
	}{
		{name: "valid token", header: "Bearer token-ops", wantStatus: http.StatusOK, wantSubject: "ops"},
		{name: "lowercase scheme", header: "bearer token-ops", wantStatus: http.StatusOK, wantSubject: "ops"},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic token-ops", wantStatus: http.StatusUnauthorized},
		{name: "no token", header: "Bearer", wantStatus: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{
			name:        "expired",
			header:      "Bearer token-ops",
			validateErr: auth.ErrExpiredToken,
			wantStatus:  http.StatusUnauthorized,
		},
		{
			name:        "wrong type",
			header:      "Bearer token-ops",
			validateErr: auth.ErrWrongTokenType,
			wantStatus:  http.StatusUnauthorized,
		},
		{
			name:        "unexpected error",
			header:      "Bearer token-ops",
			validateErr: errors.New("boom"),
			wantStatus:  http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tokens := &auth.MockTokenService{}
			if tc.validateErr != nil {
				tokens.ValidateFn = func(context.Context, string) (*auth.Claims, error) {
					return nil, tc.validateErr
				}
			}

			var gotSubject string
			handler := NewAuthMiddleware(tokens).Authenticate(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					gotSubject, _ = shared.GetSubject(r.Context())
					w.WriteHeader(http.StatusOK)
				}))

			req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tc.wantStatus, w.Code)
			assert.Equal(t, tc.wantSubject, gotSubject)
		})
	}
}

func TestTrace(t *testing.T) {
	t.Parallel()

	base := slog.New(slog.NewTextHandler(io.Discard, nil))

	var traceID string
	var log *slog.Logger
	handler := Trace(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = shared.GetTraceID(r.Context())
		log = logger.FromContext(r.Context())
	}))

	t.Run("generates", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		require.NotEmpty(t, traceID)
		assert.Equal(t, traceID, w.Header().Get(TraceHeader))
		assert.NotNil(t, log)
	})

	t.Run("propagates", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(TraceHeader, "upstream-id")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, "upstream-id", traceID)
		assert.Equal(t, "upstream-id", w.Header().Get(TraceHeader))
	})
}
