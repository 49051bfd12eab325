// Package metrics provides metrics collection including business event logging.
package metrics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lososs/callagent/internal/sanitize"
)

// BusinessEventLogger provides structured logging for business events.
// This complements Prometheus metrics by providing detailed, searchable logs
// for business intelligence, debugging, and compliance.
type BusinessEventLogger struct {
	logger *zap.Logger
}

// NewBusinessEventLogger creates a new business event logger.
func NewBusinessEventLogger(logger *zap.Logger) *BusinessEventLogger {
	return &BusinessEventLogger{
		logger: logger.Named("business_events"),
	}
}

// CallStarted logs when a call begins, inbound or outbound.
func (l *BusinessEventLogger) CallStarted(ctx context.Context, callID uuid.UUID, providerCallID, direction, phoneNumber string) {
	l.logger.Info("call_started",
		zap.String("event_type", "call.started"),
		zap.String("call_id", callID.String()),
		zap.String("provider_call_id", providerCallID),
		zap.String("direction", direction),
		zap.String("phone_number", sanitize.Phone(phoneNumber)),
		zap.Time("timestamp", time.Now().UTC()),
	)
}

// CallCompleted logs when a call ends.
func (l *BusinessEventLogger) CallCompleted(ctx context.Context, callID uuid.UUID, duration time.Duration, finalStage, endReason string, meetingScheduled bool) {
	l.logger.Info("call_completed",
		zap.String("event_type", "call.completed"),
		zap.String("call_id", callID.String()),
		zap.Duration("duration", duration),
		zap.String("final_stage", finalStage),
		zap.String("end_reason", endReason),
		zap.Bool("meeting_scheduled", meetingScheduled),
		zap.Time("timestamp", time.Now().UTC()),
	)
}

// StageAdvanced logs a funnel stage transition within a call.
func (l *BusinessEventLogger) StageAdvanced(ctx context.Context, providerCallID, from, to, subCategory string) {
	l.logger.Info("stage_advanced",
		zap.String("event_type", "conversation.stage_advanced"),
		zap.String("provider_call_id", providerCallID),
		zap.String("from", from),
		zap.String("to", to),
		zap.String("sub_category", subCategory),
		zap.Time("timestamp", time.Now().UTC()),
	)
}

// OffTopicRedirect logs an off-topic turn and the redirect used for it.
func (l *BusinessEventLogger) OffTopicRedirect(ctx context.Context, providerCallID, category string, offTopicCount int) {
	l.logger.Info("off_topic_redirect",
		zap.String("event_type", "conversation.off_topic"),
		zap.String("provider_call_id", providerCallID),
		zap.String("category", category),
		zap.Int("off_topic_count", offTopicCount),
		zap.Time("timestamp", time.Now().UTC()),
	)
}

// MeetingScheduled logs when a caller agrees to a meeting.
func (l *BusinessEventLogger) MeetingScheduled(ctx context.Context, providerCallID, stage string) {
	l.logger.Info("meeting_scheduled",
		zap.String("event_type", "conversation.meeting_scheduled"),
		zap.String("provider_call_id", providerCallID),
		zap.String("stage", stage),
		zap.Time("timestamp", time.Now().UTC()),
	)
}

// ReportJobQueued logs when a call is queued for outcome analysis.
func (l *BusinessEventLogger) ReportJobQueued(ctx context.Context, callID uuid.UUID) {
	l.logger.Info("report_job_queued",
		zap.String("event_type", "report_job.queued"),
		zap.String("call_id", callID.String()),
		zap.Time("timestamp", time.Now().UTC()),
	)
}

// ReportJobProcessed logs the result of an outcome analysis job.
func (l *BusinessEventLogger) ReportJobProcessed(ctx context.Context, callID uuid.UUID, status string, attempts int, duration time.Duration) {
	l.logger.Info("report_job_processed",
		zap.String("event_type", "report_job.processed"),
		zap.String("call_id", callID.String()),
		zap.String("status", status),
		zap.Int("attempts", attempts),
		zap.Duration("processing_duration", duration),
		zap.Time("timestamp", time.Now().UTC()),
	)
}

// CallScored logs the score assigned to an analyzed call.
func (l *BusinessEventLogger) CallScored(ctx context.Context, callID uuid.UUID, outcome string, score int, objections int) {
	l.logger.Info("call_scored",
		zap.String("event_type", "report.call_scored"),
		zap.String("call_id", callID.String()),
		zap.String("outcome", outcome),
		zap.Int("score", score),
		zap.Int("objections", objections),
		zap.Time("timestamp", time.Now().UTC()),
	)
}

// PatternLearned logs a pattern extracted from a scored call.
func (l *BusinessEventLogger) PatternLearned(ctx context.Context, callID uuid.UUID, kind, description string) {
	l.logger.Info("pattern_learned",
		zap.String("event_type", "learning.pattern_stored"),
		zap.String("call_id", callID.String()),
		zap.String("kind", kind),
		zap.String("description", description),
		zap.Time("timestamp", time.Now().UTC()),
	)
}

// WebhookReceived logs when a webhook arrives from the telephony provider.
func (l *BusinessEventLogger) WebhookReceived(ctx context.Context, endpoint, providerCallID string, valid bool) {
	level := l.logger.Info
	eventName := "webhook_received"
	if !valid {
		level = l.logger.Warn
		eventName = "webhook_invalid"
	}
	level(eventName,
		zap.String("event_type", "webhook.received"),
		zap.String("endpoint", endpoint),
		zap.String("provider_call_id", providerCallID),
		zap.Bool("valid", valid),
		zap.Time("timestamp", time.Now().UTC()),
	)
}

// ExternalAPICall logs calls to external APIs (LLM, speech synthesis, telephony).
func (l *BusinessEventLogger) ExternalAPICall(ctx context.Context, service, endpoint string, duration time.Duration, success bool, statusCode int) {
	level := l.logger.Info
	eventName := "external_api_call"
	if !success {
		level = l.logger.Warn
		eventName = "external_api_call_failed"
	}
	level(eventName,
		zap.String("event_type", "external_api.call"),
		zap.String("service", service),
		zap.String("endpoint", endpoint),
		zap.Duration("duration", duration),
		zap.Bool("success", success),
		zap.Int("status_code", statusCode),
		zap.Time("timestamp", time.Now().UTC()),
	)
}

// RateLimitExceeded logs when a rate limit is exceeded.
func (l *BusinessEventLogger) RateLimitExceeded(ctx context.Context, limiterType string, identifier string) {
	l.logger.Warn("rate_limit_exceeded",
		zap.String("event_type", "rate_limit.exceeded"),
		zap.String("limiter_type", limiterType),
		zap.String("identifier", sanitize.ID(identifier)),
		zap.Time("timestamp", time.Now().UTC()),
	)
}

// DailyStats logs daily aggregate statistics.
func (l *BusinessEventLogger) DailyStats(ctx context.Context, date time.Time, stats DailyStatsData) {
	l.logger.Info("daily_stats",
		zap.String("event_type", "stats.daily"),
		zap.Time("date", date),
		zap.Int("total_calls", stats.TotalCalls),
		zap.Int("completed_calls", stats.CompletedCalls),
		zap.Int("meetings_scheduled", stats.MeetingsScheduled),
		zap.Duration("avg_call_duration", stats.AvgCallDuration),
		zap.Float64("avg_sales_score", stats.AvgSalesScore),
		zap.Time("timestamp", time.Now().UTC()),
	)
}

// DailyStatsData holds aggregate statistics for a day.
type DailyStatsData struct {
	TotalCalls        int
	CompletedCalls    int
	MeetingsScheduled int
	AvgCallDuration   time.Duration
	AvgSalesScore     float64
}
