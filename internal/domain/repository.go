package domain

import (
	"context"

	"github.com/google/uuid"
)

// ResponseRepository persists response templates and their usage counters.
type ResponseRepository interface {
	// GetCandidates returns templates for (stage, subCategory) ordered by
	// success rate desc, conversion rate desc, times used asc.
	// An empty subCategory matches the whole stage.
	GetCandidates(ctx context.Context, stage Stage, subCategory string, limit int) ([]*ResponseTemplate, error)

	// GetByStage returns the top templates for a stage regardless of
	// sub-category.
	GetByStage(ctx context.Context, stage Stage, limit int) ([]*ResponseTemplate, error)

	// RecordUsage atomically increments times_used (and
	// times_led_to_meeting when ledToMeeting) and recomputes the rates in
	// the same statement. Safe under concurrent calls selecting the same
	// template.
	RecordUsage(ctx context.Context, id int64, ledToMeeting bool) error

	// TopPerforming returns proven templates for reporting.
	TopPerforming(ctx context.Context, minUses, limit int) ([]*ResponseTemplate, error)
}

// RedirectRepository persists redirect templates.
type RedirectRepository interface {
	// GetBest returns the highest-success template for a category,
	// falling back to the general category when none exists.
	GetBest(ctx context.Context, category RedirectCategory) (*RedirectTemplate, error)

	// RecordUsage atomically increments usage counters and recomputes
	// the success rate.
	RecordUsage(ctx context.Context, id int64, successful bool) error
}

// TopicRepository loads the whitelisted topic table.
type TopicRepository interface {
	// GetAll returns every topic ordered by priority descending.
	GetAll(ctx context.Context) ([]*TopicDefinition, error)
}

// FillerRepository loads natural-phrase interjections.
type FillerRepository interface {
	// RandomFiller returns a random high-frequency filler, or "" when
	// none are seeded.
	RandomFiller(ctx context.Context) (string, error)
}

// CallRepository persists call records.
type CallRepository interface {
	Create(ctx context.Context, record *CallRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*CallRecord, error)
	GetByProviderCallID(ctx context.Context, providerCallID string) (*CallRecord, error)
	Update(ctx context.Context, record *CallRecord) error

	// List returns records newest first.
	List(ctx context.Context, limit, offset int) ([]*CallRecord, error)
	Count(ctx context.Context) (int, error)
	ListByOutcome(ctx context.Context, outcome CallOutcome, limit, offset int) ([]*CallRecord, error)
}

// PatternRepository persists phrases extracted by the learning pass.
type PatternRepository interface {
	Create(ctx context.Context, pattern *LearnedPattern) error

	// ListByKind returns the newest patterns of one kind.
	ListByKind(ctx context.Context, kind PatternKind, limit int) ([]*LearnedPattern, error)
}
