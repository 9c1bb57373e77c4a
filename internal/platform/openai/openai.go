// Package openai implements generation.Provider for OpenAI-compatible chat
// completion endpoints.
package openai

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
const Name = "openai"

const (
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"
	DefaultModel    = "gpt-3.5-turbo"
	// Timeout bounds every request to the hosted API.
	Timeout = 60 * time.Second

	maxTokens   = 2000
	temperature = 0.7
)

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Provider talks to an OpenAI-compatible chat completions endpoint.
type Provider struct {
	cfg    generation.ProviderConfig
	client *http.Client
	logger *slog.Logger
}

var _ generation.Provider = (*Provider)(nil)

// New creates a provider. Empty endpoint and model fall back to the defaults;
// an empty API key is reported when a request is attempted.
func New(cfg generation.ProviderConfig, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Provider{
		cfg:    cfg,
		client: llmhttp.NewClient(Timeout),
		logger: logger,
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
	return p.chat(ctx, []message{
		{Role: "system", Content: generation.SystemPrompt},
		{Role: "user", Content: generation.Build(topic, keywords, hashtags, opts)},
	})
}

// Complete sends prompt as a single user message.
func (p *Provider) Complete(ctx context.Context, prompt string) (string, error) {
	return p.chat(ctx, []message{{Role: "user", Content: prompt}})
}

func (p *Provider) chat(ctx context.Context, messages []message) (string, error) {
	if p.cfg.APIKey == "" {
		return "", generation.MissingCredential(Name, "API key")
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	req := chatRequest{
		Model:       p.cfg.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	p.logger.DebugContext(ctx, "sending chat completion request",
		"model", p.cfg.Model,
		"messages", len(messages))

	resp, err := llmhttp.PostJSON(ctx, p.client, p.cfg.Endpoint, header, req)
	if err != nil {
		p.logger.ErrorContext(ctx, "chat completion request failed", "error", err)
		return "", generation.NewProviderError(Name, 0, "", err)
	}

	var body chatResponse
	decodeErr := json.Unmarshal(resp.Body, &body)

	p.logger.InfoContext(ctx, "chat completion response received",
		"model", p.cfg.Model,
		"status_code", resp.StatusCode,
		"duration_ms", resp.Duration.Milliseconds())

	if !resp.OK() {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && body.Error != nil && body.Error.Message != "" {
			msg = body.Error.Message
		}
		return "", generation.NewProviderError(Name, resp.StatusCode, msg, nil)
	}
	if decodeErr != nil {
		return "", generation.NewProviderError(Name, resp.StatusCode, "malformed response body", decodeErr)
	}
	if body.Error != nil && body.Error.Message != "" {
		return "", generation.NewProviderError(Name, resp.StatusCode, body.Error.Message, nil)
	}
	if len(body.Choices) == 0 {
		return "", generation.NewProviderError(Name, resp.StatusCode, "response has no choices", nil)
	}

	text := body.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", generation.ErrEmptyResult
	}
	return text, nil
}
