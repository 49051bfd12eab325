package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lososs/callagent/internal/domain"
)

// PatternRepository implements domain.PatternRepository using PostgreSQL.
type PatternRepository struct {
	pool *pgxpool.Pool
}

// NewPatternRepository creates a new PatternRepository.
func NewPatternRepository(pool *pgxpool.Pool) *PatternRepository {
	return &PatternRepository{pool: pool}
}

// Create stores a learned pattern.
func (r *PatternRepository) Create(ctx context.Context, pattern *domain.LearnedPattern) error {
	if err := Validate().
		Add(defaultGuard.ValidatePatternKind(string(pattern.Kind))).
		RequireString(pattern.Phrase, "phrase").
		Error(); err != nil {
		return err
	}

	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO ` + PatternColumns.TableName + ` (` +
		PatternColumns.Without("id").InsertColumns() +
		`) VALUES (` + PatternColumns.Without("id").Placeholders() + `)
		RETURNING id`

	err := r.pool.QueryRow(ctx, query,
		pattern.Kind,
		pattern.Phrase,
		pattern.Stage,
		pattern.Score,
		pattern.SourceCall,
		pattern.CreatedAt,
	).Scan(&pattern.ID)
	if err != nil {
		return fmt.Errorf("failed to insert learned pattern: %w", err)
	}
	return nil
}

// ListByKind returns the newest patterns of one kind.
func (r *PatternRepository) ListByKind(ctx context.Context, kind domain.PatternKind, limit int) ([]*domain.LearnedPattern, error) {
	ctx, cancel := WithListQueryTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, kind, phrase, stage, score, source_call, created_at
		FROM learned_patterns
		WHERE kind = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query learned patterns: %w", err)
	}
	defer rows.Close()

	var patterns []*domain.LearnedPattern
	for rows.Next() {
		p := &domain.LearnedPattern{}
		if err := rows.Scan(&p.ID, &p.Kind, &p.Phrase, &p.Stage, &p.Score, &p.SourceCall, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan learned pattern: %w", err)
		}
		patterns = append(patterns, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating learned patterns: %w", err)
	}

	return patterns, nil
}
