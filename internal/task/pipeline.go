package task

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/phrazzld/quill/internal/config"
	"github.com/phrazzld/quill/internal/content"
	"github.com/phrazzld/quill/internal/domain"
	"github.com/phrazzld/quill/internal/generation"
	"github.com/phrazzld/quill/internal/seo"
	"github.com/phrazzld/quill/internal/store"
)

// Pipeline executes generation tasks: it selects the provider, generates
// and parses the article, resolves inline images and stores the document.
type Pipeline struct {
	topics    store.TopicStore
	docs      store.ContentRepository
	uow       store.UnitOfWork
	providers *generation.Registry
	images    *content.ImageResolver
	logger    *slog.Logger
}

var _ Executor = (*Pipeline)(nil)

// NewPipeline creates a pipeline. images may be nil, in which case inline
// placeholders and featured images are skipped.
func NewPipeline(
	topics store.TopicStore,
	docs store.ContentRepository,
	uow store.UnitOfWork,
	providers *generation.Registry,
	images *content.ImageResolver,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		topics:    topics,
		docs:      docs,
		uow:       uow,
		providers: providers,
		images:    images,
		logger:    logger.With("component", "pipeline"),
	}
}

// Execute runs task with the settings of rt and returns the id of the
// created or rewritten document.
func (p *Pipeline) Execute(ctx context.Context, rt config.Runtime, t *domain.Task) (int64, error) {
	provider, err := SelectProvider(p.providers, rt)
	if err != nil {
		return 0, err
	}

	switch payload := t.Payload.(type) {
	case domain.ManualPayload:
		topic, err := p.resolveTopic(ctx, payload.TopicID, payload.TopicText)
		if err != nil {
			return 0, err
		}
		return p.create(ctx, rt, provider, topic, 0)
	case domain.ScheduledPayload:
		topic, err := p.resolveTopic(ctx, 0, "")
		if err != nil {
			return 0, err
		}
		return p.create(ctx, rt, provider, topic, 0)
	case domain.SeriesPayload:
		return p.create(ctx, rt, provider, &domain.Topic{Text: payload.TopicText}, payload.SeriesID)
	case domain.RewritePayload:
		return p.rewrite(ctx, rt, provider, payload)
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnsupportedPayload, t.Payload)
	}
}

// SelectProvider builds the active text provider of rt.
func SelectProvider(providers *generation.Registry, rt config.Runtime) (generation.Provider, error) {
	active := rt.ActiveProvider()
	return providers.Select(rt.Provider, generation.ProviderConfig{
		APIKey:   active.APIKey,
		Endpoint: active.Endpoint,
		Model:    active.Model,
	})
}

// resolveTopic returns the stored topic id, an ad hoc topic for text, or a
// random active topic when both are empty.
func (p *Pipeline) resolveTopic(ctx context.Context, id int64, text string) (*domain.Topic, error) {
	switch {
	case id > 0:
		topic, err := p.topics.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load topic %d: %w", id, err)
		}
		return topic, nil
	case strings.TrimSpace(text) != "":
		return &domain.Topic{Text: strings.TrimSpace(text)}, nil
	default:
		topic, err := p.topics.RandomActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to pick an active topic: %w", err)
		}
		return topic, nil
	}
}

// generate asks the provider for an article and turns it into a title and body.
func (p *Pipeline) generate(
	ctx context.Context,
	rt config.Runtime,
	provider generation.Provider,
	topic *domain.Topic,
) (content.Parsed, error) {
	raw, err := provider.Generate(ctx, topic.Text, topic.Keywords, topic.Hashtags, generation.Options{
		InlineImages: rt.Features.InlineImages,
	})
	if err != nil {
		return content.Parsed{}, err
	}

	parsed := content.Parse(raw)
	if strings.TrimSpace(content.StripTags(parsed.Body)) == "" && len(content.FindPlaceholders(parsed.Body)) == 0 {
		return content.Parsed{}, fmt.Errorf("%w: provider output has no body", domain.ErrEmptyContent)
	}

	if rt.Features.InlineImages && p.images != nil {
		parsed.Body = p.images.Resolve(ctx, parsed.Body, topic.Text)
	}
	return parsed, nil
}

func (p *Pipeline) create(
	ctx context.Context,
	rt config.Runtime,
	provider generation.Provider,
	topic *domain.Topic,
	seriesID int64,
) (int64, error) {
	parsed, err := p.generate(ctx, rt, provider, topic)
	if err != nil {
		return 0, err
	}

	status := domain.DocumentStatusDraft
	if rt.Features.AutoPublish {
		status = domain.DocumentStatusPublished
	}

	doc := &domain.Document{
		Title:   parsed.Title,
		Body:    parsed.Body,
		Excerpt: content.Excerpt(parsed.Body),
		Status:  status,
		Meta:    generationMeta(topic, provider.Name()),
	}

	var id int64
	if seriesID > 0 {
		err = p.uow.Within(ctx, func(ctx context.Context, docs store.ContentRepository, series store.SeriesStore) error {
			var err error
			if id, err = docs.Create(ctx, doc); err != nil {
				return err
			}
			position, err := series.AppendDocument(ctx, seriesID, id)
			if err != nil {
				return err
			}
			p.logger.DebugContext(ctx, "document appended to series",
				"series_id", seriesID,
				"document_id", id,
				"position", position)
			return nil
		})
	} else {
		id, err = p.docs.Create(ctx, doc)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to store document: %w", err)
	}

	p.logger.InfoContext(ctx, "document created",
		"document_id", id,
		"title", doc.Title,
		"status", status,
		"provider", provider.Name())

	p.enrich(ctx, rt, provider, id, doc.Title, topic.Text)
	return id, nil
}

func (p *Pipeline) rewrite(
	ctx context.Context,
	rt config.Runtime,
	provider generation.Provider,
	payload domain.RewritePayload,
) (int64, error) {
	doc, err := p.docs.Get(ctx, payload.DocumentID)
	if err != nil {
		return 0, fmt.Errorf("failed to load document %d: %w", payload.DocumentID, err)
	}

	topic := &domain.Topic{Text: strings.TrimSpace(payload.TopicText)}
	if topic.Text == "" {
		topic.Text = doc.Title
	}

	parsed, err := p.generate(ctx, rt, provider, topic)
	if err != nil {
		return 0, err
	}

	doc.Title = parsed.Title
	doc.Body = parsed.Body
	doc.Excerpt = content.Excerpt(parsed.Body)
	if err := p.docs.Update(ctx, doc); err != nil {
		return 0, fmt.Errorf("failed to update document %d: %w", doc.ID, err)
	}
	if err := p.docs.SetMeta(ctx, doc.ID, domain.MetaProvider, provider.Name()); err != nil {
		p.logger.WarnContext(ctx, "failed to record provider", "document_id", doc.ID, "error", err)
	}

	p.logger.InfoContext(ctx, "document rewritten",
		"document_id", doc.ID,
		"title", doc.Title,
		"provider", provider.Name())

	p.enrich(ctx, rt, provider, doc.ID, doc.Title, topic.Text)
	return doc.ID, nil
}

// enrich runs the optional post-creation steps. Their failures are logged
// and never fail the task.
func (p *Pipeline) enrich(
	ctx context.Context,
	rt config.Runtime,
	provider generation.Provider,
	id int64,
	title, topic string,
) {
	if rt.Features.AutoImage && p.images != nil {
		url, err := p.images.Image(ctx, generation.FeaturedImagePrompt(title, topic), title)
		if err == nil {
			err = p.docs.SetFeaturedImage(ctx, id, url)
		}
		if err != nil {
			p.logger.WarnContext(ctx, "featured image skipped", "document_id", id, "error", err)
		}
	}

	if rt.Features.AutoSEO {
		// Failures are logged by the generator.
		_, _ = seo.NewGenerator(provider, p.docs, p.logger).Generate(ctx, id)
	}
}

func generationMeta(topic *domain.Topic, provider string) map[string]string {
	meta := map[string]string{
		domain.MetaGenerated: "1",
		domain.MetaProvider:  provider,
	}
	if topic.ID > 0 {
		meta[domain.MetaTopicID] = strconv.FormatInt(topic.ID, 10)
	}
	if len(topic.Keywords) > 0 {
		meta[domain.MetaKeywords] = strings.Join(topic.Keywords, ", ")
	}
	if len(topic.Hashtags) > 0 {
		meta[domain.MetaHashtags] = strings.Join(topic.Hashtags, " ")
	}
	return meta
}
