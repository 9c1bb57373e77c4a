// Package series manages document series and proposes the next topics of
// a series from the titles it already holds.
package series

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/phrazzld/quill/internal/domain"
	"github.com/phrazzld/quill/internal/generation"
	"github.com/phrazzld/quill/internal/store"
)

const (
	// DefaultSuggestions is the number of topics requested when none is given.
	DefaultSuggestions = 5
	// MaxSuggestions caps a single suggestion request.
	MaxSuggestions = 10
)

var (
	// ErrSeriesEmpty is returned when suggestions are requested for a series
	// without documents.
	ErrSeriesEmpty = errors.New("series has no documents yet")

	// ErrEmptyName is returned when a series is created without a name.
	ErrEmptyName = errors.New("series name cannot be empty")
)

// Enqueuer adds generation tasks to the queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload domain.Payload) (int64, error)
}

// ProviderFunc returns the currently active text provider.
type ProviderFunc func(ctx context.Context) (generation.Provider, error)

// Service creates series, suggests their next topics and queues accepted
// suggestions for generation.
type Service struct {
	series   store.SeriesStore
	queue    Enqueuer
	provider ProviderFunc
	logger   *slog.Logger
}

// NewService creates a series service.
func NewService(series store.SeriesStore, queue Enqueuer, provider ProviderFunc, logger *slog.Logger) *Service {
	return &Service{
		series:   series,
		queue:    queue,
		provider: provider,
		logger:   logger.With("component", "series"),
	}
}

// Create stores a new active series.
func (s *Service) Create(ctx context.Context, name, description string) (*domain.Series, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	series := &domain.Series{
		Name:        name,
		Description: strings.TrimSpace(description),
		Status:      domain.SeriesStatusActive,
	}
	if err := s.series.Create(ctx, series); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "series created", "series_id", series.ID, "name", series.Name)
	return series, nil
}

// Suggest asks the active provider for up to n follow-up topics of the
// series. n outside 1..MaxSuggestions is clamped.
func (s *Service) Suggest(ctx context.Context, seriesID int64, n int) ([]string, error) {
	if n <= 0 {
		n = DefaultSuggestions
	}
	if n > MaxSuggestions {
		n = MaxSuggestions
	}

	series, err := s.series.Get(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	entries, err := s.series.Entries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrSeriesEmpty
	}

	titles := make([]string, 0, len(entries))
	for _, e := range entries {
		titles = append(titles, e.Title)
	}

	provider, err := s.provider(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := provider.Complete(ctx, SuggestionPrompt(series.Name, titles, n))
	if err != nil {
		return nil, fmt.Errorf("failed to generate suggestions for series %d: %w", seriesID, err)
	}

	suggestions := ParseSuggestions(raw)
	if len(suggestions) == 0 {
		return nil, fmt.Errorf("series %d: %w", seriesID, generation.ErrEmptyResult)
	}
	if len(suggestions) > n {
		suggestions = suggestions[:n]
	}

	s.logger.InfoContext(ctx, "series topics suggested",
		"series_id", seriesID,
		"provider", provider.Name(),
		"count", len(suggestions))
	return suggestions, nil
}

// Accept queues generation of the next series document about topic.
func (s *Service) Accept(ctx context.Context, seriesID int64, topic string) (int64, error) {
	if _, err := s.series.Get(ctx, seriesID); err != nil {
		return 0, err
	}
	return s.queue.Enqueue(ctx, domain.SeriesPayload{
		SeriesID:  seriesID,
		TopicText: strings.TrimSpace(topic),
	})
}

// SuggestionPrompt builds the prompt asking for n topics that continue the
// series named name.
func SuggestionPrompt(name string, titles []string, n int) string {
	clean := make([]string, 0, len(titles))
	for _, t := range titles {
		if t = generation.SanitizeForPrompt(t); t != "" {
			clean = append(clean, t)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Based on this series titled '%s' with the following blog post titles:\n\n- %s\n\n",
		generation.SanitizeForPrompt(name), strings.Join(clean, "\n- "))
	fmt.Fprintf(&b, "Suggest %d relevant topics for the next blog posts in this series. Each topic should:\n", n)
	b.WriteString("1. Follow the theme and pattern of existing posts\n")
	b.WriteString("2. Add new valuable information to the series\n")
	b.WriteString("3. Be specific and actionable\n")
	b.WriteString("4. Be different from existing topics\n\n")
	b.WriteString("Provide only the topic titles, one per line, without numbering or additional explanation.")
	return b.String()
}

var listMarker = regexp.MustCompile(`^[\d.\-*#\s]+`)

// ParseSuggestions splits a provider answer into topics, one per line,
// dropping list markers and blank lines.
func ParseSuggestions(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(listMarker.ReplaceAllString(strings.TrimSpace(line), ""))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
