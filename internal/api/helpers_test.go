package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/quill/internal/task"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// do sends a request through a router that has a single route mounted.
func do(t *testing.T, method, pattern, target string, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()

	r := chi.NewRouter()
	r.Method(method, pattern, handler)

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type fakeRunner struct {
	outcome task.Outcome
	err     error
	calls   int
}

func (f *fakeRunner) RunOnce(context.Context) (task.Outcome, error) {
	f.calls++
	return f.outcome, f.err
}

type fakeScheduleApplier struct {
	calls int
	err   error
}

func (f *fakeScheduleApplier) ApplySchedule(context.Context) error {
	f.calls++
	return f.err
}
