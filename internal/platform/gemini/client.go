package gemini

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/phrazzld/quill/internal/generation"
	"github.com/phrazzld/quill/internal/platform/llmhttp"
	"google.golang.org/genai"
)

// modelsAPI is the subset of genai.Models used here.
type modelsAPI interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
	GenerateImages(
		ctx context.Context,
		model string,
		prompt string,
		config *genai.GenerateImagesConfig,
	) (*genai.GenerateImagesResponse, error)
}

// modelsFactory creates the genai models client for an API key.
type modelsFactory func(ctx context.Context, apiKey string, timeout time.Duration) (modelsAPI, error)

func newGenAIModels(ctx context.Context, apiKey string, timeout time.Duration) (modelsAPI, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: llmhttp.NewClient(timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client.Models, nil
}

// retryPolicy controls the short in-call retry on transport failures. The
// queue's own retry handles anything longer.
type retryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

var defaultRetry = retryPolicy{MaxRetries: 1, BaseDelay: 2 * time.Second}

// withRetry runs call until it succeeds, returns a permanent error, or the
// policy is exhausted. Delays grow exponentially with jitter.
func withRetry(ctx context.Context, policy retryPolicy, call func() error) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var err error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		err = call()
		if err == nil || !isTransient(err) || attempt == policy.MaxRetries {
			return err
		}

		backoff := float64(policy.BaseDelay) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoff * (0.5 + rng.Float64()*0.5))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return err
		}
	}
	return err
}

// isTransient reports whether err is worth an immediate second try.
// Upstream rejections, safety blocks and empty answers are not.
func isTransient(err error) bool {
	switch {
	case errors.Is(err, generation.ErrContentBlocked),
		errors.Is(err, generation.ErrEmptyResult),
		errors.Is(err, generation.ErrMissingCredential),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	return true
}

// providerError converts a genai error into a *generation.ProviderError.
func providerError(name string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return generation.NewProviderError(name, apiErr.Code, apiErr.Message, err)
	}
	return generation.NewProviderError(name, 0, "", err)
}
