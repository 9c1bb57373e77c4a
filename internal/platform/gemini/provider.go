package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/phrazzld/quill/internal/generation"
	"google.golang.org/genai"
)

// Name is the provider identifier.
const Name = "gemini"

const (
	DefaultModel = "gemini-1.5-flash"
	// Timeout bounds one Generate or Complete call, retries included.
	Timeout = 60 * time.Second

	temperature     = 0.7
	maxOutputTokens = 2048
)

// Provider implements generation.Provider on the Gemini API.
type Provider struct {
	cfg    generation.ProviderConfig
	logger *slog.Logger
	retry  retryPolicy

	newModels modelsFactory
	once      sync.Once
	models    modelsAPI
	initErr   error
}

var _ generation.Provider = (*Provider)(nil)

// New creates a provider. The genai client is built lazily on the first call
// so that a missing key is reported as generation.ErrMissingCredential.
func New(cfg generation.ProviderConfig, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Provider{
		cfg:       cfg,
		logger:    logger,
		retry:     defaultRetry,
		newModels: newGenAIModels,
	}, nil
}

// Factory adapts New to generation.Factory.
func Factory(cfg generation.ProviderConfig, logger *slog.Logger) (generation.Provider, error) {
	return New(cfg, logger)
}

func (p *Provider) Name() string                      { return Name }
func (p *Provider) Config() generation.ProviderConfig { return p.cfg }

// Generate writes an article about topic.
func (p *Provider) Generate(
	ctx context.Context,
	topic string,
	keywords, hashtags []string,
	opts generation.Options,
) (string, error) {
	return p.Complete(ctx, generation.Build(topic, keywords, hashtags, opts))
}

// Complete answers prompt.
func (p *Provider) Complete(ctx context.Context, prompt string) (string, error) {
	if p.cfg.APIKey == "" {
		return "", generation.MissingCredential(Name, "API key")
	}

	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	models, err := p.client(ctx)
	if err != nil {
		return "", generation.NewProviderError(Name, 0, "client initialisation failed", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](temperature),
		MaxOutputTokens: maxOutputTokens,
	}

	var text string
	attempt := 0
	err = withRetry(ctx, p.retry, func() error {
		attempt++
		start := time.Now()
		resp, callErr := models.GenerateContent(ctx, p.cfg.Model, genai.Text(prompt), config)

		p.logger.InfoContext(ctx, "gemini generate content call finished",
			"model", p.cfg.Model,
			"attempt", attempt,
			"duration_ms", time.Since(start).Milliseconds(),
			"success", callErr == nil)

		if callErr != nil {
			return providerError(Name, callErr)
		}
		text, callErr = extractText(resp)
		return callErr
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func (p *Provider) client(ctx context.Context) (modelsAPI, error) {
	p.once.Do(func() {
		p.models, p.initErr = p.newModels(ctx, p.cfg.APIKey, Timeout)
	})
	return p.models, p.initErr
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", generation.NewProviderError(Name, 0, "response has no candidates", nil)
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", generation.NewProviderError(Name, 0, "", generation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return "", generation.ErrEmptyResult
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", generation.ErrEmptyResult
	}
	return b.String(), nil
}
