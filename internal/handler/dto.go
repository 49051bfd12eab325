// Package handler provides HTTP handlers for the application.
// This file contains the JSON shapes of the read API.
package handler

import (
	"time"

	"github.com/lososs/callagent/internal/domain"
)

// CallResponse is the JSON shape of one call record.
type CallResponse struct {
	ID               string     `json:"id"`
	ProviderCallID   string     `json:"provider_call_id"`
	Direction        string     `json:"direction"`
	PhoneNumber      string     `json:"phone_number"`
	Campaign         string     `json:"campaign,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	DurationSeconds  *int       `json:"duration_seconds,omitempty"`
	FinalStage       string     `json:"final_stage"`
	EndReason        string     `json:"end_reason,omitempty"`
	Outcome          string     `json:"outcome"`
	Score            *int       `json:"score,omitempty"`
	Summary          *string    `json:"summary,omitempty"`
	Transcript       *string    `json:"transcript,omitempty"`
	MeetingScheduled bool       `json:"meeting_scheduled"`
	PositiveSignals  int        `json:"positive_signals"`
	ObjectionCount   int        `json:"objection_count"`
}

// CallListResponse is a paginated page of call records.
type CallListResponse struct {
	Calls []CallResponse `json:"calls"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
}

// PatternResponse is the JSON shape of one learned pattern.
type PatternResponse struct {
	ID         int64  `json:"id"`
	Kind       string `json:"kind"`
	Phrase     string `json:"phrase"`
	Stage      string `json:"stage"`
	Score      int    `json:"score"`
	SourceCall string `json:"source_call"`
}

func toCallResponse(record *domain.CallRecord) CallResponse {
	return CallResponse{
		ID:               record.ID.String(),
		ProviderCallID:   record.ProviderCallID,
		Direction:        string(record.Direction),
		PhoneNumber:      record.PhoneNumber,
		Campaign:         record.Campaign,
		StartedAt:        record.StartedAt,
		EndedAt:          record.EndedAt,
		DurationSeconds:  record.DurationSeconds,
		FinalStage:       string(record.FinalStage),
		EndReason:        string(record.EndReason),
		Outcome:          string(record.Outcome),
		Score:            record.Score,
		Summary:          record.Summary,
		Transcript:       record.Transcript,
		MeetingScheduled: record.MeetingScheduled,
		PositiveSignals:  record.PositiveSignals,
		ObjectionCount:   record.ObjectionCount,
	}
}
