package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/phrazzld/quill/internal/domain"
	"github.com/phrazzld/quill/internal/store"
)

// TopicStore implements store.TopicStore.
type TopicStore struct {
	db store.DBTX
}

var _ store.TopicStore = (*TopicStore)(nil)

// NewTopicStore creates a topic store.
func NewTopicStore(db store.DBTX) *TopicStore {
	return &TopicStore{db: db}
}

const topicColumns = `id, text, keywords, hashtags, active`

func (s *TopicStore) Get(ctx context.Context, id int64) (*domain.Topic, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+topicColumns+` FROM topics WHERE id = $1`, id)
	t, err := scanTopic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrTopicNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get topic: %w", MapError(err))
	}
	return t, nil
}

// RandomActive picks one active topic uniformly at random.
func (s *TopicStore) RandomActive(ctx context.Context) (*domain.Topic, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+topicColumns+` FROM topics WHERE active ORDER BY random() LIMIT 1`)
	t, err := scanTopic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrTopicNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pick topic: %w", MapError(err))
	}
	return t, nil
}

func (s *TopicStore) Create(ctx context.Context, topic *domain.Topic) error {
	if strings.TrimSpace(topic.Text) == "" {
		return fmt.Errorf("%w: topic text cannot be empty", store.ErrInvalidEntity)
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO topics (text, keywords, hashtags, active)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		topic.Text,
		strings.Join(topic.Keywords, ", "),
		strings.Join(topic.Hashtags, ", "),
		topic.Active,
	).Scan(&topic.ID)
	if err != nil {
		return MapUniqueViolation(MapError(err), "topic", nil)
	}
	return nil
}

func (s *TopicStore) List(ctx context.Context, activeOnly bool) ([]*domain.Topic, error) {
	query := `SELECT ` + topicColumns + ` FROM topics`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	topics := []*domain.Topic{}
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan topic: %w", err)
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

func scanTopic(row rowScanner) (*domain.Topic, error) {
	var t domain.Topic
	var keywords, hashtags string
	if err := row.Scan(&t.ID, &t.Text, &keywords, &hashtags, &t.Active); err != nil {
		return nil, err
	}
	t.Keywords = domain.SplitList(keywords)
	t.Hashtags = domain.NormalizeHashtags(domain.SplitList(hashtags))
	return &t, nil
}
