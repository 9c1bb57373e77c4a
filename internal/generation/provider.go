package generation

import "context"

// ProviderConfig is the connection information a provider was built with.
// Collaborators that issue free-form prompts read it instead of reaching
// into adapter internals.
type ProviderConfig struct {
	APIKey   string
	Endpoint string
	Model    string
}

// Options carries the feature flags that change the generation prompt.
type Options struct {
	InlineImages bool
}

// Provider turns a topic into raw markup using one LLM backend.
//
// Implementations fail with ErrMissingCredential before any network call when
// unconfigured, with a *ProviderError on transport or upstream failures and
// with ErrEmptyResult when the upstream answers without text. Every call is
// bounded by the adapter's timeout.
type Provider interface {
	// Name returns the provider identifier (openai, gemini, ollama).
	Name() string

	// Config returns the settings the provider was built with.
	Config() ProviderConfig

	// Generate writes an article about topic.
	Generate(ctx context.Context, topic string, keywords, hashtags []string, opts Options) (string, error)

	// Complete answers an arbitrary prompt. Used for SEO metadata and series
	// topic suggestions.
	Complete(ctx context.Context, prompt string) (string, error)
}

// Image is one generated picture.
type Image struct {
	Data     []byte
	MIMEType string
}

// ImageGenerator turns a textual prompt into an image.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*Image, error)
}
