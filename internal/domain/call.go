package domain

import (
	"time"

	"github.com/google/uuid"
)

// CallOutcome is the post-call classification produced by the reporter.
type CallOutcome string

const (
	OutcomeSuccess    CallOutcome = "success"
	OutcomeCallback   CallOutcome = "callback"
	OutcomeNoInterest CallOutcome = "no_interest"
	OutcomeNoAnswer   CallOutcome = "no_answer"
	OutcomeUnknown    CallOutcome = "unknown"
)

// CallRecord is the persisted record of one call. It is created when the
// call starts, updated at completion, and updated again when the
// asynchronous outcome analysis finishes.
type CallRecord struct {
	ID             uuid.UUID
	ProviderCallID string
	Direction      CallDirection
	PhoneNumber    string
	Campaign       string

	StartedAt       time.Time
	EndedAt         *time.Time
	DurationSeconds *int

	FinalStage Stage
	EndReason  EndReason

	Outcome          CallOutcome
	Score            *int
	Summary          *string
	Transcript       *string
	MeetingScheduled bool
	PositiveSignals  int
	ObjectionCount   int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewCallRecord creates a record for a call that just started.
func NewCallRecord(providerCallID string, direction CallDirection, phoneNumber, campaign string, now time.Time) *CallRecord {
	return &CallRecord{
		ID:             uuid.New(),
		ProviderCallID: providerCallID,
		Direction:      direction,
		PhoneNumber:    phoneNumber,
		Campaign:       campaign,
		StartedAt:      now,
		FinalStage:     StageIntro,
		Outcome:        OutcomeUnknown,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Analyzed reports whether the outcome pass has run for this record.
func (r *CallRecord) Analyzed() bool {
	return r.Outcome != OutcomeUnknown && r.Score != nil
}

// PatternKind separates phrases that worked from phrases that failed.
type PatternKind string

const (
	PatternSuccess PatternKind = "success"
	PatternFailure PatternKind = "failure"
)

// LearnedPattern is a phrase extracted from a scored call by the learning
// pass. High-scoring calls contribute success patterns that feed future
// prompt personalization; low-scoring calls contribute failure patterns.
type LearnedPattern struct {
	ID        int64
	Kind      PatternKind
	Phrase    string
	Stage     Stage
	Score     int
	SourceCall uuid.UUID
	CreatedAt time.Time
}
