package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lososs/callagent/internal/domain"
)

// TopicRepository implements domain.TopicRepository using PostgreSQL.
type TopicRepository struct {
	pool *pgxpool.Pool
}

// NewTopicRepository creates a new TopicRepository.
func NewTopicRepository(pool *pgxpool.Pool) *TopicRepository {
	return &TopicRepository{pool: pool}
}

// GetAll returns every whitelisted topic, highest priority first.
func (r *TopicRepository) GetAll(ctx context.Context) ([]*domain.TopicDefinition, error) {
	ctx, cancel := WithListQueryTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, name, category, keywords, priority, is_core
		FROM allowed_topics
		ORDER BY priority DESC, name ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query topics: %w", err)
	}
	defer rows.Close()

	var topics []*domain.TopicDefinition
	for rows.Next() {
		t := &domain.TopicDefinition{}
		if err := rows.Scan(&t.ID, &t.Name, &t.Category, &t.Keywords, &t.Priority, &t.IsCore); err != nil {
			return nil, fmt.Errorf("failed to scan topic: %w", err)
		}
		topics = append(topics, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating topics: %w", err)
	}

	return topics, nil
}
