package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FillerRepository implements domain.FillerRepository using PostgreSQL.
type FillerRepository struct {
	pool *pgxpool.Pool
}

// NewFillerRepository creates a new FillerRepository.
func NewFillerRepository(pool *pgxpool.Pool) *FillerRepository {
	return &FillerRepository{pool: pool}
}

// RandomFiller returns a random high-frequency filler phrase. The table is
// tiny, so ORDER BY random() is fine here. An empty table yields "" with
// no error: fillers are a garnish, never a requirement.
func (r *FillerRepository) RandomFiller(ctx context.Context) (string, error) {
	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	query := `
		SELECT phrase
		FROM filler_phrases
		WHERE frequency = 'high'
		ORDER BY random()
		LIMIT 1`

	var phrase string
	err := r.pool.QueryRow(ctx, query).Scan(&phrase)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to pick filler phrase: %w", err)
	}
	return phrase, nil
}
