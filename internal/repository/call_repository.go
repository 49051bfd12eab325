// Package repository implements data persistence using PostgreSQL.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lososs/callagent/internal/domain"
)

// CallRepository implements domain.CallRepository using PostgreSQL.
type CallRepository struct {
	pool *pgxpool.Pool
}

// NewCallRepository creates a new CallRepository.
func NewCallRepository(pool *pgxpool.Pool) *CallRepository {
	return &CallRepository{pool: pool}
}

var callColumns = " " + CallRecordColumns.Select()

// Create inserts a new call record.
func (r *CallRepository) Create(ctx context.Context, record *domain.CallRecord) error {
	if err := Validate().
		RequireUUID(record.ID, "id").
		RequireString(record.ProviderCallID, "provider_call_id").
		Add(defaultGuard.ValidateDirection(string(record.Direction))).
		Error(); err != nil {
		return err
	}

	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	query := `INSERT INTO call_records (` +
		CallRecordColumns.InsertColumns() +
		`) VALUES (` + CallRecordColumns.Placeholders() + `)`

	_, err := r.pool.Exec(ctx, query,
		record.ID,
		record.ProviderCallID,
		record.Direction,
		record.PhoneNumber,
		record.Campaign,
		record.StartedAt,
		record.EndedAt,
		record.DurationSeconds,
		record.FinalStage,
		record.EndReason,
		record.Outcome,
		record.Score,
		record.Summary,
		record.Transcript,
		record.MeetingScheduled,
		record.PositiveSignals,
		record.ObjectionCount,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert call record: %w", err)
	}

	return nil
}

// GetByID retrieves a call record by its internal ID.
func (r *CallRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.CallRecord, error) {
	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	query := `SELECT` + callColumns + ` FROM call_records WHERE id = $1`
	return r.scanRecord(ctx, query, id)
}

// GetByProviderCallID retrieves a call record by the telephony provider's ID.
func (r *CallRepository) GetByProviderCallID(ctx context.Context, providerCallID string) (*domain.CallRecord, error) {
	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	query := `SELECT` + callColumns + ` FROM call_records WHERE provider_call_id = $1`
	return r.scanRecord(ctx, query, providerCallID)
}

// Update updates an existing call record.
func (r *CallRepository) Update(ctx context.Context, record *domain.CallRecord) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	record.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE call_records SET
			phone_number = $2,
			campaign = $3,
			started_at = $4,
			ended_at = $5,
			duration_seconds = $6,
			final_stage = $7,
			end_reason = $8,
			outcome = $9,
			score = $10,
			summary = $11,
			transcript = $12,
			meeting_scheduled = $13,
			positive_signals = $14,
			objection_count = $15,
			updated_at = $16
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query,
		record.ID,
		record.PhoneNumber,
		record.Campaign,
		record.StartedAt,
		record.EndedAt,
		record.DurationSeconds,
		record.FinalStage,
		record.EndReason,
		record.Outcome,
		record.Score,
		record.Summary,
		record.Transcript,
		record.MeetingScheduled,
		record.PositiveSignals,
		record.ObjectionCount,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update call record: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// List retrieves call records with pagination, newest first.
func (r *CallRepository) List(ctx context.Context, limit, offset int) ([]*domain.CallRecord, error) {
	limit, offset = defaultGuard.NormalizePagination(limit, offset, 20, 100)

	ctx, cancel := WithListQueryTimeout(ctx)
	defer cancel()

	query := `SELECT` + callColumns + `
		FROM call_records
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	return r.scanRecords(ctx, query, limit, offset)
}

// Count returns the total number of call records.
func (r *CallRepository) Count(ctx context.Context) (int, error) {
	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM call_records").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count call records: %w", err)
	}
	return count, nil
}

// ListByOutcome retrieves call records filtered by outcome, newest first.
func (r *CallRepository) ListByOutcome(ctx context.Context, outcome domain.CallOutcome, limit, offset int) ([]*domain.CallRecord, error) {
	ctx, cancel := WithListQueryTimeout(ctx)
	defer cancel()

	query := `SELECT` + callColumns + `
		FROM call_records
		WHERE outcome = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	return r.scanRecords(ctx, query, outcome, limit, offset)
}

// scanRecord scans a single call record from a query.
func (r *CallRepository) scanRecord(ctx context.Context, query string, args ...interface{}) (*domain.CallRecord, error) {
	record := &domain.CallRecord{}

	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&record.ID,
		&record.ProviderCallID,
		&record.Direction,
		&record.PhoneNumber,
		&record.Campaign,
		&record.StartedAt,
		&record.EndedAt,
		&record.DurationSeconds,
		&record.FinalStage,
		&record.EndReason,
		&record.Outcome,
		&record.Score,
		&record.Summary,
		&record.Transcript,
		&record.MeetingScheduled,
		&record.PositiveSignals,
		&record.ObjectionCount,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan call record: %w", err)
	}

	return record, nil
}

// scanRecords scans multiple call records from a query.
func (r *CallRepository) scanRecords(ctx context.Context, query string, args ...interface{}) ([]*domain.CallRecord, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query call records: %w", err)
	}
	defer rows.Close()

	var records []*domain.CallRecord
	for rows.Next() {
		record := &domain.CallRecord{}
		err := rows.Scan(
			&record.ID,
			&record.ProviderCallID,
			&record.Direction,
			&record.PhoneNumber,
			&record.Campaign,
			&record.StartedAt,
			&record.EndedAt,
			&record.DurationSeconds,
			&record.FinalStage,
			&record.EndReason,
			&record.Outcome,
			&record.Score,
			&record.Summary,
			&record.Transcript,
			&record.MeetingScheduled,
			&record.PositiveSignals,
			&record.ObjectionCount,
			&record.CreatedAt,
			&record.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call record row: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating call record rows: %w", err)
	}

	return records, nil
}
