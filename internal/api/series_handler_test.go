package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/phrazzld/quill/internal/domain"
	"github.com/phrazzld/quill/internal/generation"
	"github.com/phrazzld/quill/internal/mocks"
	"github.com/phrazzld/quill/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSeriesService struct {
	store       *mocks.MockSeriesStore
	suggestions []string
	suggestErr  error
	suggestN    int
	accepted    []string
}

func (f *fakeSeriesService) Create(ctx context.Context, name, description string) (*domain.Series, error) {
	s := &domain.Series{Name: name, Description: description, Status: domain.SeriesStatusActive}
	if err := f.store.Create(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (f *fakeSeriesService) Suggest(_ context.Context, _ int64, n int) ([]string, error) {
	f.suggestN = n
	return f.suggestions, f.suggestErr
}

func (f *fakeSeriesService) Accept(_ context.Context, _ int64, topic string) (int64, error) {
	f.accepted = append(f.accepted, topic)
	return int64(len(f.accepted)), nil
}

func newSeriesFixture(t *testing.T) (*SeriesHandler, *fakeSeriesService, int64) {
	t.Helper()

	st := mocks.NewMockSeriesStore()
	svc := &fakeSeriesService{store: st}
	s, err := svc.Create(context.Background(), "Go Concurrency", "")
	require.NoError(t, err)
	_, err = st.AppendDocument(context.Background(), s.ID, 40)
	require.NoError(t, err)
	st.Titles = map[int64]string{40: "Goroutines 101"}

	return NewSeriesHandler(svc, st, testLogger()), svc, s.ID
}

func TestCreateAndListSeries(t *testing.T) {
	t.Parallel()

	h, _, _ := newSeriesFixture(t)

	w := do(t, http.MethodPost, "/api/series", "/api/series", h.CreateSeries, `{"name":"Databases","description":"SQL"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[domain.Series](t, w)
	assert.Equal(t, "Databases", created.Name)
	assert.NotZero(t, created.ID)

	w = do(t, http.MethodPost, "/api/series", "/api/series", h.CreateSeries, `{"description":"no name"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid name")

	w = do(t, http.MethodGet, "/api/series", "/api/series", h.ListSeries, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.Series](t, w), 2)
}

func TestGetSeries(t *testing.T) {
	t.Parallel()

	h, _, id := newSeriesFixture(t)

	w := do(t, http.MethodGet, "/api/series/{id}", fmt.Sprintf("/api/series/%d", id), h.GetSeries, "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[SeriesDetailResponse](t, w)
	assert.Equal(t, "Go Concurrency", got.Name)
	require.Len(t, got.Entries, 1)
	assert.Equal(t, "Goroutines 101", got.Entries[0].Title)
	assert.Equal(t, 1, got.Entries[0].Position)

	w = do(t, http.MethodGet, "/api/series/{id}", "/api/series/999", h.GetSeries, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Series not found")
}

func TestSuggest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{name: "default count", body: "", wantStatus: http.StatusOK},
		{name: "explicit count", body: `{"count":3}`, wantStatus: http.StatusOK},
		{name: "count too large", body: `{"count":11}`, wantStatus: http.StatusBadRequest},
		{name: "empty series", err: series.ErrSeriesEmpty, wantStatus: http.StatusUnprocessableEntity},
		{name: "unconfigured provider", err: generation.MissingCredential("openai", "API key"), wantStatus: http.StatusServiceUnavailable},
		{name: "provider failure", err: generation.NewProviderError("openai", 500, "boom", nil), wantStatus: http.StatusBadGateway},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h, svc, id := newSeriesFixture(t)
			svc.suggestions = []string{"Channels", "Select"}
			svc.suggestErr = tc.err

			w := do(t, http.MethodPost, "/api/series/{id}/suggestions",
				fmt.Sprintf("/api/series/%d/suggestions", id), h.Suggest, tc.body)
			require.Equal(t, tc.wantStatus, w.Code, w.Body.String())
			if tc.wantStatus == http.StatusOK {
				assert.Equal(t, []string{"Channels", "Select"}, decode[SuggestResponse](t, w).Suggestions)
			}
		})
	}
}

func TestAcceptSuggestion(t *testing.T) {
	t.Parallel()

	h, svc, id := newSeriesFixture(t)
	target := fmt.Sprintf("/api/series/%d/topics", id)

	w := do(t, http.MethodPost, "/api/series/{id}/topics", target, h.Accept, `{"topic":"Channels"}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, int64(1), decode[EnqueueResponse](t, w).TaskID)
	assert.Equal(t, []string{"Channels"}, svc.accepted)

	w = do(t, http.MethodPost, "/api/series/{id}/topics", target, h.Accept, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, http.MethodPost, "/api/series/{id}/topics", "/api/series/77/topics", h.Accept, `{"topic":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Len(t, svc.accepted, 1)
}
