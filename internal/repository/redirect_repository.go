package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lososs/callagent/internal/domain"
)

// RedirectRepository implements domain.RedirectRepository using PostgreSQL.
type RedirectRepository struct {
	pool *pgxpool.Pool
}

// NewRedirectRepository creates a new RedirectRepository.
func NewRedirectRepository(pool *pgxpool.Pool) *RedirectRepository {
	return &RedirectRepository{pool: pool}
}

const redirectColumns = `
	id, category, acknowledgment, redirect_direct, redirect_soft,
	times_used, times_successful, success_rate`

// GetBest returns the highest-success redirect for a category. When the
// category has no template the general one serves as the catch-all.
func (r *RedirectRepository) GetBest(ctx context.Context, category domain.RedirectCategory) (*domain.RedirectTemplate, error) {
	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	query := `SELECT` + redirectColumns + `
		FROM redirect_templates
		WHERE category = $1
		ORDER BY success_rate DESC, times_used ASC
		LIMIT 1`

	tmpl, err := r.scanTemplate(ctx, query, category)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return tmpl, err
	}
	if category == domain.RedirectGeneral {
		return nil, ErrNotFound
	}
	return r.scanTemplate(ctx, query, domain.RedirectGeneral)
}

// RecordUsage bumps the counters and recomputes the success rate in one
// statement.
func (r *RedirectRepository) RecordUsage(ctx context.Context, id int64, successful bool) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	query := `
		UPDATE redirect_templates SET
			times_used = times_used + 1,
			times_successful = times_successful + CASE WHEN $2 THEN 1 ELSE 0 END,
			success_rate = (times_successful + CASE WHEN $2 THEN 1 ELSE 0 END)::float / (times_used + 1) * 100
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, successful)
	if err != nil {
		return fmt.Errorf("failed to record redirect usage: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RedirectRepository) scanTemplate(ctx context.Context, query string, args ...interface{}) (*domain.RedirectTemplate, error) {
	t := &domain.RedirectTemplate{}
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&t.ID,
		&t.Category,
		&t.Acknowledgment,
		&t.RedirectDirect,
		&t.RedirectSoft,
		&t.TimesUsed,
		&t.TimesSuccessful,
		&t.SuccessRate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan redirect template: %w", err)
	}
	return t, nil
}
