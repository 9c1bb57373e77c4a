package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/quill/internal/api/shared"
	"github.com/phrazzld/quill/internal/config"
	"github.com/phrazzld/quill/internal/domain"
	"github.com/phrazzld/quill/internal/generation"
	"github.com/phrazzld/quill/internal/series"
	"github.com/phrazzld/quill/internal/service/auth"
	"github.com/phrazzld/quill/internal/store"
	"github.com/phrazzld/quill/internal/task"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// exposing the error types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrWrongTokenType):
		return http.StatusUnauthorized

	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, config.ErrUnknownSetting):
		return http.StatusNotFound

	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrInvalidPayload),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, config.ErrInvalidSetting),
		errors.Is(err, task.ErrInvalidRetention),
		errors.Is(err, series.ErrEmptyName):
		return http.StatusBadRequest

	case errors.Is(err, series.ErrSeriesEmpty):
		return http.StatusUnprocessableEntity

	case errors.Is(err, generation.ErrMissingCredential),
		errors.Is(err, generation.ErrUnknownProvider):
		return http.StatusServiceUnavailable

	case errors.Is(err, generation.ErrProviderError),
		errors.Is(err, generation.ErrEmptyResult):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid token"

	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, store.ErrTopicNotFound):
		return "Topic not found"
	case errors.Is(err, store.ErrSeriesNotFound):
		return "Series not found"
	case errors.Is(err, store.ErrDocumentNotFound):
		return "Document not found"
	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"
	case errors.Is(err, config.ErrUnknownSetting):
		return "Unknown setting"

	case errors.Is(err, store.ErrDuplicate):
		return "Resource already exists"

	case errors.Is(err, config.ErrInvalidSetting):
		return "Invalid setting value"
	case errors.Is(err, task.ErrInvalidRetention):
		return "Retention must be at least one day"
	case errors.Is(err, series.ErrEmptyName):
		return "Series name is required"
	case errors.Is(err, domain.ErrInvalidPayload):
		return "Invalid task request"
	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrValidation):
		return "Invalid entity data"

	case errors.Is(err, series.ErrSeriesEmpty):
		return "Series has no documents yet"

	case errors.Is(err, generation.ErrMissingCredential):
		return "The active provider is not configured"
	case errors.Is(err, generation.ErrUnknownProvider):
		return "The active provider is not available"
	case errors.Is(err, generation.ErrContentBlocked):
		return "The provider blocked the request"
	case errors.Is(err, generation.ErrProviderError),
		errors.Is(err, generation.ErrEmptyResult):
		return "The provider request failed"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the mapped status and safe message for err and logs
// the underlying error.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, defaultMsg string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && defaultMsg != "" {
		message = defaultMsg
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}

// SanitizeValidationError turns validator errors into a short message that
// names the field and the failed rule.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("Invalid %s: %s", strings.ToLower(fe.Field()), validationTagMessage(fe.Tag()))
	}
	return "Validation error"
}

func validationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too small"
	case "max":
		return "too large"
	case "gt", "gte":
		return "must be positive"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
