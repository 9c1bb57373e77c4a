// Package seo derives search metadata (a meta description and a focus
// keyword) for generated documents using the active LLM provider.
package seo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/quill/internal/content"
	"github.com/phrazzld/quill/internal/domain"
	"github.com/phrazzld/quill/internal/generation"
	"github.com/phrazzld/quill/internal/store"
)

const (
	// DescriptionLimit is the maximum meta description length in characters.
	DescriptionLimit = 160
	previewLimit     = 500
	maxKeywordWords  = 4
)

// Meta is the SEO metadata of one document.
type Meta struct {
	Description string `json:"description"`
	Keyword     string `json:"keyword"`
}

// Generator produces and stores SEO metadata.
type Generator struct {
	provider generation.Provider
	docs     store.ContentRepository
	logger   *slog.Logger
}

// NewGenerator creates a generator that prompts provider and writes meta to docs.
func NewGenerator(provider generation.Provider, docs store.ContentRepository, logger *slog.Logger) *Generator {
	return &Generator{
		provider: provider,
		docs:     docs,
		logger:   logger.With("component", "seo"),
	}
}

// Generate creates the description and focus keyword of a document and
// stores each one that succeeds. The returned Meta holds whatever succeeded;
// the error joins the failures.
func (g *Generator) Generate(ctx context.Context, documentID int64) (Meta, error) {
	doc, err := g.docs.Get(ctx, documentID)
	if err != nil {
		return Meta{}, fmt.Errorf("failed to load document %d: %w", documentID, err)
	}

	var meta Meta
	var errs []error

	if raw, err := g.provider.Complete(ctx, DescriptionPrompt(doc.Title, doc.Body)); err != nil {
		errs = append(errs, fmt.Errorf("description: %w", err))
	} else if meta.Description = CleanDescription(raw); meta.Description == "" {
		errs = append(errs, fmt.Errorf("description: %w", generation.ErrEmptyResult))
	} else if err := g.docs.SetMeta(ctx, documentID, domain.MetaSEODescription, meta.Description); err != nil {
		errs = append(errs, fmt.Errorf("description: %w", err))
	}

	if raw, err := g.provider.Complete(ctx, KeywordPrompt(doc.Title, doc.Body)); err != nil {
		errs = append(errs, fmt.Errorf("keyword: %w", err))
	} else if meta.Keyword = CleanKeyword(raw); meta.Keyword == "" {
		errs = append(errs, fmt.Errorf("keyword: %w", generation.ErrEmptyResult))
	} else if err := g.docs.SetMeta(ctx, documentID, domain.MetaSEOKeyword, meta.Keyword); err != nil {
		errs = append(errs, fmt.Errorf("keyword: %w", err))
	}

	err = errors.Join(errs...)
	if err != nil {
		g.logger.WarnContext(ctx, "seo metadata incomplete",
			"document_id", documentID,
			"provider", g.provider.Name(),
			"error", err)
	} else {
		g.logger.InfoContext(ctx, "seo metadata generated",
			"document_id", documentID,
			"keyword", meta.Keyword)
	}
	return meta, err
}

func preview(title, body string) string {
	text := content.StripTags(body)
	if runes := []rune(text); len(runes) > previewLimit {
		text = string(runes[:previewLimit])
	}
	return fmt.Sprintf("Blog Post Title: %s\n\nContent Preview: %s", title, text)
}

// DescriptionPrompt asks for a meta description of the post.
func DescriptionPrompt(title, body string) string {
	var b strings.Builder
	b.WriteString("Task: Generate an SEO meta description (snippet) for the following blog post.\n\n")
	b.WriteString(preview(title, body))
	b.WriteString("\n\nRequirements:\n")
	b.WriteString("1. Maximum 155-160 characters\n")
	b.WriteString("2. Include primary keywords naturally\n")
	b.WriteString("3. Compelling and click-worthy\n")
	b.WriteString("4. Accurately describes the content\n")
	b.WriteString("5. NO quotation marks, just return the plain description text\n")
	b.WriteString("\nReturn ONLY the meta description text, nothing else.")
	return b.String()
}

// KeywordPrompt asks for the post's focus keyword.
func KeywordPrompt(title, body string) string {
	var b strings.Builder
	b.WriteString("Task: Identify the primary focus keyword/phrase for the following blog post.\n\n")
	b.WriteString(preview(title, body))
	b.WriteString("\n\nRequirements:\n")
	b.WriteString("1. Should be 1-4 words maximum\n")
	b.WriteString("2. Most relevant to the post content\n")
	b.WriteString("3. Good for SEO targeting\n")
	b.WriteString("4. High search intent\n")
	b.WriteString("5. NO quotation marks or extra text\n")
	b.WriteString("\nReturn ONLY the keyword/phrase, nothing else.")
	return b.String()
}

var stripper = strings.NewReplacer(`"`, "", "'", "", "\n", "", "\r", "")

// CleanDescription removes quotes and line breaks and caps the length.
func CleanDescription(raw string) string {
	return content.Truncate(strings.TrimSpace(stripper.Replace(strings.TrimSpace(raw))), DescriptionLimit)
}

// CleanKeyword removes quotes and line breaks, lowercases and keeps at most
// four words.
func CleanKeyword(raw string) string {
	words := strings.Fields(strings.ToLower(stripper.Replace(raw)))
	if len(words) > maxKeywordWords {
		words = words[:maxKeywordWords]
	}
	return strings.Join(words, " ")
}
