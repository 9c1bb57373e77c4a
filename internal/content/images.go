package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/phrazzld/quill/internal/generation"
	"github.com/phrazzld/quill/internal/store"
	"golang.org/x/time/rate"
)

// ErrImagesUnavailable is returned when no image generator or blob store is wired.
var ErrImagesUnavailable = errors.New("image generation is not available")

const fallbackImageName = "generated-image"

// placeholderPattern matches [IMAGE: description], case-insensitively.
var placeholderPattern = regexp.MustCompile(`(?i)\[IMAGE:\s*([^\]]*?)\s*\]`)

// ImageResolver generates images, uploads them to the blob store and
// returns their URLs. Uploaded URLs are cached by prompt so a retried task
// reuses the images of its previous attempt.
type ImageResolver struct {
	images  generation.ImageGenerator
	blobs   store.BlobStore
	limiter *rate.Limiter
	cache   *cache.Cache
	logger  *slog.Logger
}

// NewImageResolver creates a resolver. perMinute limits calls to the image
// generator; zero disables the limit. A nil generator or blob store makes
// every resolution fail without panicking.
func NewImageResolver(
	images generation.ImageGenerator,
	blobs store.BlobStore,
	perMinute int,
	logger *slog.Logger,
) *ImageResolver {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &ImageResolver{
		images:  images,
		blobs:   blobs,
		limiter: rate.NewLimiter(limit, 1),
		cache:   cache.New(30*time.Minute, time.Hour),
		logger:  logger.With("component", "image_resolver"),
	}
}

// Placeholder is one [IMAGE: ...] marker found in a body.
type Placeholder struct {
	Description string
	Start, End  int
}

// FindPlaceholders returns the image placeholders of body in order.
func FindPlaceholders(body string) []Placeholder {
	matches := placeholderPattern.FindAllStringSubmatchIndex(body, -1)
	out := make([]Placeholder, 0, len(matches))
	for _, m := range matches {
		out = append(out, Placeholder{
			Description: strings.TrimSpace(body[m[2]:m[3]]),
			Start:       m[0],
			End:         m[1],
		})
	}
	return out
}

// Resolve replaces every image placeholder in body, first to last. Each
// successful placeholder becomes a <figure>; each failed one becomes an HTML
// comment describing the failure. Resolve never fails the document.
func (r *ImageResolver) Resolve(ctx context.Context, body, topic string) string {
	placeholders := FindPlaceholders(body)
	if len(placeholders) == 0 {
		return body
	}

	var b strings.Builder
	last := 0
	resolved := 0
	for i, ph := range placeholders {
		b.WriteString(body[last:ph.Start])
		last = ph.End

		if ph.Description == "" {
			b.WriteString(failureComment("empty image description"))
			continue
		}

		url, err := r.Image(ctx, generation.InlineImagePrompt(topic, ph.Description), ph.Description)
		if err != nil {
			r.logger.WarnContext(ctx, "inline image generation failed",
				"index", i,
				"description", ph.Description,
				"error", err)
			b.WriteString(failureComment(err.Error()))
			continue
		}

		resolved++
		b.WriteString(figure(url, ph.Description))
	}
	b.WriteString(body[last:])

	r.logger.InfoContext(ctx, "inline image placeholders resolved",
		"placeholders", len(placeholders),
		"resolved", resolved)

	return b.String()
}

// Image generates an image for prompt, uploads it and returns its URL.
// nameHint seeds the uploaded file name.
func (r *ImageResolver) Image(ctx context.Context, prompt, nameHint string) (string, error) {
	if r.images == nil || r.blobs == nil {
		return "", ErrImagesUnavailable
	}

	key := cacheKey(prompt)
	if url, ok := r.cache.Get(key); ok {
		return url.(string), nil
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("image rate limit wait: %w", err)
	}

	img, err := r.images.GenerateImage(ctx, prompt)
	if err != nil {
		return "", err
	}

	url, err := r.blobs.Upload(ctx, img.Data, Slug(nameHint, fallbackImageName), img.MIMEType)
	if err != nil {
		return "", fmt.Errorf("image upload failed: %w", err)
	}

	r.cache.SetDefault(key, url)
	return url, nil
}

func cacheKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

func figure(url, description string) string {
	desc := html.EscapeString(description)
	return fmt.Sprintf(`<figure class="generated-image"><img src="%s" alt="%s" loading="lazy"/><figcaption>%s</figcaption></figure>`,
		html.EscapeString(url), desc, desc)
}

// failureComment renders reason as an HTML comment. "--" is not allowed
// inside comments, so it is collapsed.
func failureComment(reason string) string {
	reason = strings.ReplaceAll(reason, "--", "-")
	reason = strings.ReplaceAll(reason, ">", ")")
	return "<!-- image generation failed: " + reason + " -->"
}
