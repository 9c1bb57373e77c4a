package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/quill/internal/generation"
	"google.golang.org/genai"
)

const (
	ImageProviderName  = "imagen"
	DefaultImageModel  = "imagen-3.0-generate-001"
	DefaultAspectRatio = "16:9"
	// ImageTimeout bounds one image generation call.
	ImageTimeout = 120 * time.Second

	imageMIMEType = "image/jpeg"
)

// ImageConfig configures the Imagen generator.
type ImageConfig struct {
	APIKey      string
	Model       string
	AspectRatio string
	// KeySource, when set, supplies the API key for each call and takes
	// precedence over APIKey.
	KeySource func(ctx context.Context) string
}

// ImageGenerator implements generation.ImageGenerator with Imagen.
type ImageGenerator struct {
	cfg    ImageConfig
	logger *slog.Logger

	newModels modelsFactory
	mu        sync.Mutex
	clientKey string
	models    modelsAPI
}

var _ generation.ImageGenerator = (*ImageGenerator)(nil)

// NewImageGenerator creates an image generator with defaults applied.
func NewImageGenerator(cfg ImageConfig, logger *slog.Logger) (*ImageGenerator, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultImageModel
	}
	if cfg.AspectRatio == "" {
		cfg.AspectRatio = DefaultAspectRatio
	}
	return &ImageGenerator{cfg: cfg, logger: logger, newModels: newGenAIModels}, nil
}

// Configured reports whether an API key is currently available.
func (g *ImageGenerator) Configured(ctx context.Context) bool {
	return g.apiKey(ctx) != ""
}

func (g *ImageGenerator) apiKey(ctx context.Context) string {
	if g.cfg.KeySource != nil {
		return g.cfg.KeySource(ctx)
	}
	return g.cfg.APIKey
}

// client returns the models client for apiKey, replacing the cached one
// when the key has changed since it was built.
func (g *ImageGenerator) client(ctx context.Context, apiKey string) (modelsAPI, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.models != nil && g.clientKey == apiKey {
		return g.models, nil
	}
	models, err := g.newModels(ctx, apiKey, ImageTimeout)
	if err != nil {
		return nil, err
	}
	g.models = models
	g.clientKey = apiKey
	return models, nil
}

// GenerateImage renders prompt into a single JPEG image.
func (g *ImageGenerator) GenerateImage(ctx context.Context, prompt string) (*generation.Image, error) {
	apiKey := g.apiKey(ctx)
	if apiKey == "" {
		return nil, generation.MissingCredential(ImageProviderName, "API key")
	}

	ctx, cancel := context.WithTimeout(ctx, ImageTimeout)
	defer cancel()

	models, err := g.client(ctx, apiKey)
	if err != nil {
		return nil, generation.NewProviderError(ImageProviderName, 0, "client initialisation failed", err)
	}

	start := time.Now()
	resp, err := models.GenerateImages(ctx, g.cfg.Model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    g.cfg.AspectRatio,
		OutputMIMEType: imageMIMEType,
	})

	logPrompt := prompt
	if len(logPrompt) > 100 {
		logPrompt = logPrompt[:100]
	}
	g.logger.InfoContext(ctx, "image generation call finished",
		"model", g.cfg.Model,
		"prompt", logPrompt,
		"duration_ms", time.Since(start).Milliseconds(),
		"success", err == nil)

	if err != nil {
		return nil, providerError(ImageProviderName, err)
	}
	if resp == nil || len(resp.GeneratedImages) == 0 {
		return nil, generation.NewProviderError(ImageProviderName, 0, "no images in response", nil)
	}

	first := resp.GeneratedImages[0]
	if first == nil || first.Image == nil || len(first.Image.ImageBytes) == 0 {
		reason := "image was filtered"
		if first != nil && first.RAIFilteredReason != "" {
			reason = first.RAIFilteredReason
		}
		return nil, generation.NewProviderError(ImageProviderName, 0, reason, generation.ErrContentBlocked)
	}

	mime := first.Image.MIMEType
	if mime == "" {
		mime = imageMIMEType
	}
	return &generation.Image{Data: first.Image.ImageBytes, MIMEType: mime}, nil
}
