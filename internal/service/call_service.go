// Package service contains business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lososs/callagent/internal/clock"
	"github.com/lososs/callagent/internal/conversation"
	"github.com/lososs/callagent/internal/domain"
	apperrors "github.com/lososs/callagent/internal/errors"
	"github.com/lososs/callagent/internal/metrics"
	"github.com/lososs/callagent/internal/repository"
)

// OutcomeReporter queues completed calls for asynchronous outcome analysis.
type OutcomeReporter interface {
	Enqueue(callID uuid.UUID, usedResponses []int64) error
}

// CallService drives the lifecycle of a call: session creation on the
// first webhook, one engine turn per speech result, and record completion
// plus report enqueueing when the call ends.
type CallService struct {
	sessions *conversation.SessionStore
	engine   *conversation.Engine
	callRepo domain.CallRepository
	reporter OutcomeReporter
	clock    clock.Clock
	logger   *zap.Logger
	metrics  *metrics.Metrics
	events   *metrics.BusinessEventLogger
}

// NewCallService creates a new CallService.
func NewCallService(
	sessions *conversation.SessionStore,
	engine *conversation.Engine,
	callRepo domain.CallRepository,
	reporter OutcomeReporter,
	clk clock.Clock,
	logger *zap.Logger,
	m *metrics.Metrics,
) *CallService {
	return &CallService{
		sessions: sessions,
		engine:   engine,
		callRepo: callRepo,
		reporter: reporter,
		clock:    clk,
		logger:   logger,
		metrics:  m,
		events:   metrics.NewBusinessEventLogger(logger),
	}
}

// StartInbound handles the first webhook of an incoming call. It creates
// the session and the persisted record and returns the greeting to speak.
func (s *CallService) StartInbound(ctx context.Context, providerCallID, callerNumber string) (string, error) {
	return s.start(ctx, providerCallID, domain.DirectionInbound, callerNumber, "")
}

// StartOutbound handles the answer webhook of a campaign call.
func (s *CallService) StartOutbound(ctx context.Context, providerCallID, calleeNumber, campaign string) (string, error) {
	return s.start(ctx, providerCallID, domain.DirectionOutbound, calleeNumber, campaign)
}

func (s *CallService) start(ctx context.Context, providerCallID string, direction domain.CallDirection, phoneNumber, campaign string) (string, error) {
	session := s.sessions.GetOrCreate(providerCallID, direction, phoneNumber)
	session.Campaign = campaign

	s.logger.Info("call started",
		zap.String("provider_call_id", providerCallID),
		zap.String("direction", string(direction)),
		zap.String("campaign", campaign),
	)

	// The record may already exist when the provider retries a webhook.
	existing, err := s.callRepo.GetByProviderCallID(ctx, providerCallID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("checking existing call record: %w", err)
	}
	if existing == nil {
		record := domain.NewCallRecord(providerCallID, direction, phoneNumber, campaign, s.clock.NowUTC())
		if err := s.callRepo.Create(ctx, record); err != nil {
			return "", fmt.Errorf("creating call record: %w", err)
		}
		s.events.CallStarted(ctx, record.ID, providerCallID, string(direction), phoneNumber)
	}

	if s.metrics != nil {
		s.metrics.RecordCallStarted(string(direction))
	}

	return s.engine.Greeting(ctx, session, "", ""), nil
}

// HandleTurn runs one conversation turn for a speech result webhook.
// When the engine decides the call is over, the record is completed and
// the call queued for outcome analysis before returning.
func (s *CallService) HandleTurn(ctx context.Context, providerCallID, utterance string, confidence float64, callElapsed int) (conversation.TurnResult, error) {
	session := s.sessions.Get(providerCallID)
	if session == nil {
		return conversation.TurnResult{}, apperrors.ErrSessionNotFound
	}

	result := s.engine.ProcessTurn(ctx, session, conversation.TurnInput{
		Utterance:   utterance,
		Confidence:  confidence,
		CallElapsed: callElapsed,
	})

	if result.EndCall {
		if err := s.finish(ctx, providerCallID); err != nil {
			s.logger.Error("failed to complete call record",
				zap.String("provider_call_id", providerCallID),
				zap.Error(err),
			)
		}
	}

	return result, nil
}

// HandleStatus processes a call-status callback. Terminal statuses close
// out any session the conversation flow did not end itself, which is how
// caller hangups are detected.
func (s *CallService) HandleStatus(ctx context.Context, providerCallID, callStatus string) error {
	if !terminalStatus(callStatus) {
		return nil
	}

	session := s.sessions.Get(providerCallID)
	if session == nil {
		return nil
	}

	if !session.Terminated() {
		session.Terminate(domain.EndReasonHangup)
	}

	s.logger.Info("call ended by status callback",
		zap.String("provider_call_id", providerCallID),
		zap.String("call_status", callStatus),
		zap.String("end_reason", string(session.EndReason)),
	)

	return s.finish(ctx, providerCallID)
}

// finish removes the session, writes the completion fields to the call
// record, and queues the call for outcome analysis.
func (s *CallService) finish(ctx context.Context, providerCallID string) error {
	session := s.sessions.Remove(providerCallID)
	if session == nil {
		return nil
	}

	record, err := s.callRepo.GetByProviderCallID(ctx, providerCallID)
	if err != nil {
		return fmt.Errorf("loading call record: %w", err)
	}

	now := s.clock.NowUTC()
	duration := int(now.Sub(session.StartedAt).Seconds())
	transcript := session.Transcript()

	record.EndedAt = &now
	record.DurationSeconds = &duration
	record.FinalStage = finalStage(session)
	record.EndReason = session.EndReason
	record.MeetingScheduled = session.MeetingScheduled
	if transcript != "" {
		record.Transcript = &transcript
	}

	if err := s.callRepo.Update(ctx, record); err != nil {
		return fmt.Errorf("updating call record: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordCallCompleted(string(session.EndReason), now.Sub(session.StartedAt))
		if session.MeetingScheduled {
			s.metrics.RecordMeetingScheduled()
		}
	}

	s.events.CallCompleted(ctx, record.ID, now.Sub(session.StartedAt),
		string(record.FinalStage), string(session.EndReason), session.MeetingScheduled)
	if session.MeetingScheduled {
		s.events.MeetingScheduled(ctx, providerCallID, string(record.FinalStage))
	}

	if s.reporter != nil {
		if err := s.reporter.Enqueue(record.ID, session.UsedResponses); err != nil {
			// Analysis is best effort; the call record itself is complete.
			s.logger.Warn("failed to enqueue outcome report",
				zap.String("call_id", record.ID.String()),
				zap.Error(err),
			)
		} else {
			s.events.ReportJobQueued(ctx, record.ID)
		}
	}

	s.logger.Info("call completed",
		zap.String("call_id", record.ID.String()),
		zap.String("provider_call_id", providerCallID),
		zap.Int("duration_seconds", duration),
		zap.String("end_reason", string(session.EndReason)),
		zap.Bool("meeting_scheduled", session.MeetingScheduled),
	)

	return nil
}

// SweepStale terminates and completes sessions whose call aged out
// without a status callback, typically after a lost webhook.
func (s *CallService) SweepStale(ctx context.Context, maxAge time.Duration) int {
	swept := s.sessions.SweepStale(maxAge)
	for _, session := range swept {
		record, err := s.callRepo.GetByProviderCallID(ctx, session.ProviderCallID)
		if err != nil {
			s.logger.Warn("no record for swept session",
				zap.String("provider_call_id", session.ProviderCallID),
				zap.Error(err),
			)
			continue
		}

		now := s.clock.NowUTC()
		duration := int(now.Sub(session.StartedAt).Seconds())
		transcript := session.Transcript()

		record.EndedAt = &now
		record.DurationSeconds = &duration
		record.FinalStage = finalStage(session)
		record.EndReason = session.EndReason
		record.MeetingScheduled = session.MeetingScheduled
		if transcript != "" {
			record.Transcript = &transcript
		}

		if err := s.callRepo.Update(ctx, record); err != nil {
			s.logger.Error("failed to complete swept call record",
				zap.String("call_id", record.ID.String()),
				zap.Error(err),
			)
		}
	}
	return len(swept)
}

// ActiveCalls returns the number of in-flight sessions.
func (s *CallService) ActiveCalls() int {
	return s.sessions.ActiveCount()
}

// GetCall retrieves a call record by ID.
func (s *CallService) GetCall(ctx context.Context, id uuid.UUID) (*domain.CallRecord, error) {
	return s.callRepo.GetByID(ctx, id)
}

// ListCalls retrieves call records with pagination.
func (s *CallService) ListCalls(ctx context.Context, page, pageSize int) ([]*domain.CallRecord, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	offset := (page - 1) * pageSize

	records, err := s.callRepo.List(ctx, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.callRepo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

// finalStage reports the last funnel stage the call reached before it
// ended. Sessions swept without ever terminating report their current
// stage.
func finalStage(session *domain.CallSession) domain.Stage {
	if session.Stage != domain.StageTerminated {
		return session.Stage
	}
	if session.StageAtEnd != "" {
		return session.StageAtEnd
	}
	return domain.StageIntro
}

// terminalStatus reports whether a provider call status means the call
// leg is over.
func terminalStatus(status string) bool {
	switch status {
	case "completed", "busy", "failed", "no-answer", "canceled":
		return true
	}
	return false
}
