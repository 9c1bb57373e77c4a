package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/quill/internal/api/shared"
	"github.com/phrazzld/quill/internal/config"
	"github.com/phrazzld/quill/internal/store"
)

// ScheduleApplier re-reads the schedule settings after they change.
type ScheduleApplier interface {
	ApplySchedule(ctx context.Context) error
}

// SettingsHandler serves the runtime settings endpoints.
type SettingsHandler struct {
	settings store.SettingsStore
	schedule ScheduleApplier
	logger   *slog.Logger
}

// NewSettingsHandler creates a SettingsHandler.
func NewSettingsHandler(settings store.SettingsStore, schedule ScheduleApplier, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{
		settings: settings,
		schedule: schedule,
		logger:   logger.With("component", "settings_handler"),
	}
}

// MaskSecret hides all but the last four characters of a secret.
func MaskSecret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 8 {
		return "********"
	}
	return "********" + value[len(value)-4:]
}

// ListSettings handles GET /api/settings.
func (h *SettingsHandler) ListSettings(w http.ResponseWriter, r *http.Request) {
	stored, err := h.settings.All(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load settings")
		return
	}

	masked := make(map[string]string, len(stored))
	for key, value := range stored {
		if config.IsSecretSetting(key) {
			value = MaskSecret(value)
		}
		masked[key] = value
	}
	shared.RespondWithJSON(w, r, http.StatusOK, SettingsResponse{
		Keys:     config.OverrideKeys(),
		Settings: masked,
	})
}

// SetSetting handles PUT /api/settings/{key}.
func (h *SettingsHandler) SetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req SetSettingRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}
	value := strings.TrimSpace(req.Value)

	if err := config.ValidateSetting(key, value); err != nil {
		HandleAPIError(w, r, err, "Invalid setting")
		return
	}
	if err := h.settings.Set(r.Context(), key, value); err != nil {
		HandleAPIError(w, r, err, "Failed to save setting")
		return
	}
	h.logger.InfoContext(r.Context(), "setting updated", "key", key)

	h.settingChanged(w, r, key)
}

// DeleteSetting handles DELETE /api/settings/{key} and restores the static
// configuration value.
func (h *SettingsHandler) DeleteSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !isOverrideKey(key) {
		HandleAPIError(w, r, config.ErrUnknownSetting, "")
		return
	}
	if err := h.settings.Delete(r.Context(), key); err != nil {
		HandleAPIError(w, r, err, "Failed to delete setting")
		return
	}
	h.logger.InfoContext(r.Context(), "setting removed", "key", key)

	h.settingChanged(w, r, key)
}

func (h *SettingsHandler) settingChanged(w http.ResponseWriter, r *http.Request, key string) {
	if strings.HasPrefix(key, "schedule.") {
		if err := h.schedule.ApplySchedule(r.Context()); err != nil {
			HandleAPIError(w, r, err, "Setting saved but the schedule could not be applied")
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func isOverrideKey(key string) bool {
	for _, k := range config.OverrideKeys() {
		if k == key {
			return true
		}
	}
	return false
}
