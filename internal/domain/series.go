package domain

import "time"

// SeriesStatus is the lifecycle state of a series.
type SeriesStatus string

const (
	SeriesStatusActive   SeriesStatus = "active"
	SeriesStatusArchived SeriesStatus = "archived"
)

// Series is an ordered group of documents on a common theme.
type Series struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Status      SeriesStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
}

// SeriesEntry is one document's position within a series.
type SeriesEntry struct {
	SeriesID   int64  `json:"series_id"`
	DocumentID int64  `json:"document_id"`
	Position   int    `json:"position"`
	Title      string `json:"title"`
}
