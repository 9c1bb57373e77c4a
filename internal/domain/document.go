package domain

import (
	"errors"
	"strings"
	"time"
)

// DocumentStatus is the publication state of a generated document.
type DocumentStatus string

const (
	DocumentStatusDraft     DocumentStatus = "draft"
	DocumentStatusPublished DocumentStatus = "published"
)

// Meta keys written alongside generated documents.
const (
	MetaGenerated      = "generated"
	MetaTopicID        = "topic_id"
	MetaKeywords       = "keywords"
	MetaHashtags       = "hashtags"
	MetaProvider       = "provider"
	MetaSEODescription = "seo_description"
	MetaSEOKeyword     = "seo_focus_keyword"
)

var ErrEmptyDocumentTitle = errors.New("document title cannot be empty")

// Document is a unit of generated content held by the content repository.
type Document struct {
	ID               int64             `json:"id"`
	Title            string            `json:"title"`
	Body             string            `json:"body"`
	Excerpt          string            `json:"excerpt"`
	Status           DocumentStatus    `json:"status"`
	FeaturedImageURL string            `json:"featured_image_url,omitempty"`
	Meta             map[string]string `json:"meta,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// Validate checks the fields required to persist a document.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return ErrEmptyDocumentTitle
	}
	if d.Status != DocumentStatusDraft && d.Status != DocumentStatusPublished {
		return errors.Join(ErrValidation, errors.New("invalid document status"))
	}
	return nil
}
