package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lososs/callagent/internal/domain"
)

// ResponseRepository implements domain.ResponseRepository using PostgreSQL.
type ResponseRepository struct {
	pool *pgxpool.Pool
}

// NewResponseRepository creates a new ResponseRepository.
func NewResponseRepository(pool *pgxpool.Pool) *ResponseRepository {
	return &ResponseRepository{pool: pool}
}

const responseColumns = `
	id, stage, sub_category, situation, text, alternative_1, alternative_2,
	strategy, tone, urgency_level, expected_reply, next_step,
	times_used, times_led_to_meeting, success_rate, conversion_rate, last_used_at`

// GetCandidates returns the best templates for a funnel situation. Proven
// templates rank first; among equals the least used wins so new variants
// get air time.
func (r *ResponseRepository) GetCandidates(ctx context.Context, stage domain.Stage, subCategory string, limit int) ([]*domain.ResponseTemplate, error) {
	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	query := `SELECT` + responseColumns + `
		FROM response_templates
		WHERE stage = $1 AND ($2 = '' OR sub_category = $2)
		ORDER BY success_rate DESC, conversion_rate DESC, times_used ASC
		LIMIT $3`

	return r.scanTemplates(ctx, query, stage, subCategory, limit)
}

// GetByStage returns the top templates for a stage regardless of
// sub-category.
func (r *ResponseRepository) GetByStage(ctx context.Context, stage domain.Stage, limit int) ([]*domain.ResponseTemplate, error) {
	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	query := `SELECT` + responseColumns + `
		FROM response_templates
		WHERE stage = $1
		ORDER BY success_rate DESC, conversion_rate DESC, times_used ASC
		LIMIT $2`

	return r.scanTemplates(ctx, query, stage, limit)
}

// RecordUsage bumps the usage counters and recomputes the derived rates in
// one statement, so concurrent calls selecting the same template never
// race on the rate columns. Unused templates keep the seeded 50.0 prior.
func (r *ResponseRepository) RecordUsage(ctx context.Context, id int64, ledToMeeting bool) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	query := `
		UPDATE response_templates SET
			times_used = times_used + 1,
			times_led_to_meeting = times_led_to_meeting + CASE WHEN $2 THEN 1 ELSE 0 END,
			success_rate = CASE
				WHEN times_used + 1 > 0
				THEN (times_led_to_meeting + CASE WHEN $2 THEN 1 ELSE 0 END)::float / (times_used + 1) * 100
				ELSE 50.0
			END,
			conversion_rate = CASE
				WHEN times_used + 1 > 0
				THEN (times_led_to_meeting + CASE WHEN $2 THEN 1 ELSE 0 END)::float / (times_used + 1) * 100
				ELSE 0.0
			END,
			last_used_at = NOW()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, ledToMeeting)
	if err != nil {
		return fmt.Errorf("failed to record template usage: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TopPerforming returns proven templates for reporting, best first.
func (r *ResponseRepository) TopPerforming(ctx context.Context, minUses, limit int) ([]*domain.ResponseTemplate, error) {
	ctx, cancel := WithListQueryTimeout(ctx)
	defer cancel()

	query := `SELECT` + responseColumns + `
		FROM response_templates
		WHERE times_used >= $1
		ORDER BY success_rate DESC, times_used DESC
		LIMIT $2`

	return r.scanTemplates(ctx, query, minUses, limit)
}

func (r *ResponseRepository) scanTemplates(ctx context.Context, query string, args ...interface{}) ([]*domain.ResponseTemplate, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query response templates: %w", err)
	}
	defer rows.Close()

	var templates []*domain.ResponseTemplate
	for rows.Next() {
		t := &domain.ResponseTemplate{}
		err := rows.Scan(
			&t.ID,
			&t.Stage,
			&t.SubCategory,
			&t.Situation,
			&t.Text,
			&t.Alternative1,
			&t.Alternative2,
			&t.Strategy,
			&t.Tone,
			&t.UrgencyLevel,
			&t.ExpectedReply,
			&t.NextStep,
			&t.TimesUsed,
			&t.TimesLedToMeeting,
			&t.SuccessRate,
			&t.ConversionRate,
			&t.LastUsedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan response template: %w", err)
		}
		templates = append(templates, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating response templates: %w", err)
	}

	return templates, nil
}
