// Package ollama implements generation.Provider for a local Ollama server.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/phrazzld/quill/internal/generation"
	"github.com/phrazzld/quill/internal/platform/llmhttp"
)

// Name is the provider identifier.
const Name = "ollama"

const (
	DefaultEndpoint = "http://localhost:11434/api/generate"
	DefaultModel    = "llama2"
	// Timeout is longer than the hosted providers; local models are slow.
	Timeout = 120 * time.Second
)

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Provider calls the Ollama generate endpoint. It needs no API key; the
// endpoint is its credential.
type Provider struct {
	cfg    generation.ProviderConfig
	client *http.Client
	logger *slog.Logger
}

var _ generation.Provider = (*Provider)(nil)

// New creates a provider. An empty model falls back to the default. The
// endpoint is not defaulted here; an empty endpoint is a missing credential.
func New(cfg generation.ProviderConfig, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Provider{cfg: cfg, client: llmhttp.NewClient(Timeout), logger: logger}, nil
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
	return p.generate(ctx, generateRequest{
		Model:  p.cfg.Model,
		Prompt: generation.Build(topic, keywords, hashtags, opts),
		System: generation.SystemPrompt,
	})
}

// Complete answers prompt verbatim.
func (p *Provider) Complete(ctx context.Context, prompt string) (string, error) {
	return p.generate(ctx, generateRequest{Model: p.cfg.Model, Prompt: prompt})
}

func (p *Provider) generate(ctx context.Context, req generateRequest) (string, error) {
	if p.cfg.Endpoint == "" {
		return "", generation.MissingCredential(Name, "endpoint")
	}

	p.logger.DebugContext(ctx, "sending generate request",
		"model", req.Model,
		"prompt_length", len(req.Prompt))

	resp, err := llmhttp.PostJSON(ctx, p.client, p.cfg.Endpoint, nil, req)
	if err != nil {
		p.logger.ErrorContext(ctx, "generate request failed", "error", err)
		return "", generation.NewProviderError(Name, 0, "", err)
	}

	var body generateResponse
	decodeErr := json.Unmarshal(resp.Body, &body)

	p.logger.InfoContext(ctx, "generate response received",
		"model", req.Model,
		"status_code", resp.StatusCode,
		"duration_ms", resp.Duration.Milliseconds())

	if !resp.OK() {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && body.Error != "" {
			msg = body.Error
		}
		return "", generation.NewProviderError(Name, resp.StatusCode, msg, nil)
	}
	if decodeErr != nil {
		return "", generation.NewProviderError(Name, resp.StatusCode, "malformed response body", decodeErr)
	}
	if body.Error != "" {
		return "", generation.NewProviderError(Name, resp.StatusCode, body.Error, nil)
	}
	if strings.TrimSpace(body.Response) == "" {
		return "", generation.ErrEmptyResult
	}
	return body.Response, nil
}
