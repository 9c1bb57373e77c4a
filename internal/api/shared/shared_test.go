package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceID(t *testing.T) {
	t.Parallel()

	assert.Empty(t, GetTraceID(context.Background()))

	generated := GetTraceID(SetTraceID(context.Background(), ""))
	assert.Len(t, generated, 36)

	assert.Equal(t, "abc", GetTraceID(SetTraceID(context.Background(), "abc")))
}

func TestGetSubject(t *testing.T) {
	t.Parallel()

	_, ok := GetSubject(context.Background())
	assert.False(t, ok)

	subject, ok := GetSubject(context.WithValue(context.Background(), SubjectContextKey, "ops"))
	assert.True(t, ok)
	assert.Equal(t, "ops", subject)
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	type body struct {
		Name string `json:"name" validate:"required"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"name":"x"}`},
		{name: "empty", body: ``, wantErr: true},
		{name: "unknown field", body: `{"name":"x","extra":1}`, wantErr: true},
		{name: "trailing data", body: `{"name":"x"}{"name":"y"}`, wantErr: true},
		{name: "malformed", body: `{"name":`, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var got body
			err := DecodeJSON(req, &got)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "x", got.Name)
		})
	}
}

type selfValidating struct{ ok bool }

func (s selfValidating) Validate() error {
	if !s.ok {
		return errors.New("not ok")
	}
	return nil
}

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	type tagged struct {
		Name string `validate:"required"`
	}
	assert.Error(t, ValidateRequest(&tagged{}))
	assert.NoError(t, ValidateRequest(&tagged{Name: "x"}))
	assert.Error(t, ValidateRequest(selfValidating{}))
	assert.NoError(t, ValidateRequest(selfValidating{ok: true}))
}

func TestRespondWithErrorAndLog(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
	req = req.WithContext(SetTraceID(req.Context(), "trace-1"))
	w := httptest.NewRecorder()

	RespondWithErrorAndLog(w, req, http.StatusInternalServerError, "Something failed",
		errors.New("dial postgres://user:secret@db:5432 failed"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotContains(t, w.Body.String(), "secret")

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Something failed", resp.Error)
	assert.Equal(t, "trace-1", resp.TraceID)
}
