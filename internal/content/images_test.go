package content

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/phrazzld/quill/internal/generation"
	"github.com/phrazzld/quill/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestFindPlaceholders(t *testing.T) {
	t.Parallel()

	body := "<p>a</p>[IMAGE: a red fox]<p>b</p>[image:  city at night ]"
	got := FindPlaceholders(body)

	require.Len(t, got, 2)
	assert.Equal(t, "a red fox", got[0].Description)
	assert.Equal(t, "city at night", got[1].Description)
	assert.Equal(t, "[IMAGE: a red fox]", body[got[0].Start:got[0].End])
}

func TestImageResolver_Resolve(t *testing.T) {
	t.Parallel()

	t.Run("replaces placeholders with figures", func(t *testing.T) {
		t.Parallel()
		images := &mocks.MockImageGenerator{}
		blobs := &mocks.MockBlobStore{}
		r := NewImageResolver(images, blobs, 0, testLogger())

		out := r.Resolve(context.Background(), "<p>x</p>[IMAGE: a red fox]<p>y</p>", "Foxes")

		assert.NotContains(t, out, "[IMAGE")
		assert.Contains(t, out, `<img src="mem://1/a-red-fox.jpg" alt="a red fox"`)
		assert.True(t, strings.HasPrefix(out, "<p>x</p><figure"))
		assert.True(t, strings.HasSuffix(out, "<p>y</p>"))
		require.Len(t, images.Prompts(), 1)
		assert.Contains(t, images.Prompts()[0], "a red fox")
	})

	t.Run("failed placeholder becomes comment and others still resolve", func(t *testing.T) {
		t.Parallel()
		images := &mocks.MockImageGenerator{
			GenerateImageFn: func(_ context.Context, prompt string) (*generation.Image, error) {
				if strings.Contains(prompt, "broken") {
					return nil, errors.New("quota exceeded")
				}
				return &generation.Image{Data: []byte("img"), MIMEType: "image/png"}, nil
			},
		}
		r := NewImageResolver(images, &mocks.MockBlobStore{}, 0, testLogger())

		out := r.Resolve(context.Background(), "[IMAGE: broken one][IMAGE: good one]", "t")

		assert.Contains(t, out, "<!-- image generation failed: quota exceeded -->")
		assert.Contains(t, out, `alt="good one"`)
	})

	t.Run("no generator leaves comments", func(t *testing.T) {
		t.Parallel()
		r := NewImageResolver(nil, nil, 0, testLogger())
		out := r.Resolve(context.Background(), "[IMAGE: x]", "t")
		assert.Equal(t, "<!-- image generation failed: "+ErrImagesUnavailable.Error()+" -->", out)
	})

	t.Run("body without placeholders unchanged", func(t *testing.T) {
		t.Parallel()
		r := NewImageResolver(nil, nil, 0, testLogger())
		assert.Equal(t, "<p>plain</p>", r.Resolve(context.Background(), "<p>plain</p>", "t"))
	})
}

func TestImageResolver_ImageCachesByPrompt(t *testing.T) {
	t.Parallel()

	images := &mocks.MockImageGenerator{}
	blobs := &mocks.MockBlobStore{}
	r := NewImageResolver(images, blobs, 0, testLogger())

	first, err := r.Image(context.Background(), "same prompt", "hint")
	require.NoError(t, err)
	second, err := r.Image(context.Background(), "same prompt", "hint")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, images.Prompts(), 1)
	assert.Len(t, blobs.Uploads(), 1)
}

func TestImageResolver_UploadError(t *testing.T) {
	t.Parallel()

	blobs := &mocks.MockBlobStore{
		UploadFn: func(context.Context, []byte, string, string) (string, error) {
			return "", errors.New("disk full")
		},
	}
	r := NewImageResolver(&mocks.MockImageGenerator{}, blobs, 0, testLogger())

	_, err := r.Image(context.Background(), "p", "hint")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
