package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/phrazzld/quill/internal/api/shared"
	"github.com/phrazzld/quill/internal/health"
)

// HealthReporter builds health reports.
type HealthReporter interface {
	Report(ctx context.Context, probe bool) *health.Report
}

// HealthHandler serves the liveness and health endpoints.
type HealthHandler struct {
	reporter HealthReporter
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(reporter HealthReporter) *HealthHandler {
	return &HealthHandler{reporter: reporter}
}

// Live handles GET /health.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// Report handles GET /api/health. ?probe=true sends a test prompt to every
// configured provider. An overall error status is answered with 503.
func (h *HealthHandler) Report(w http.ResponseWriter, r *http.Request) {
	probe, _ := strconv.ParseBool(r.URL.Query().Get("probe"))

	report := h.reporter.Report(r.Context(), probe)
	status := http.StatusOK
	if report.Status == health.StatusError {
		status = http.StatusServiceUnavailable
	}
	shared.RespondWithJSON(w, r, status, report)
}
