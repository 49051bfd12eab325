package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.InfoLevel)
	return zap.New(core), logs
}

func TestBusinessEventLogger_CallStarted(t *testing.T) {
	logger, logs := newTestLogger()
	bel := NewBusinessEventLogger(logger)

	callID := uuid.New()
	bel.CallStarted(context.Background(), callID, "CA123", "outbound", "+15551234567")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}

	entry := entries[0]
	if entry.Message != "call_started" {
		t.Errorf("expected message 'call_started', got '%s'", entry.Message)
	}

	// Check fields
	fields := entry.ContextMap()
	if fields["event_type"] != "call.started" {
		t.Errorf("expected event_type 'call.started', got '%v'", fields["event_type"])
	}
	if fields["call_id"] != callID.String() {
		t.Errorf("expected call_id '%s', got '%v'", callID.String(), fields["call_id"])
	}
	if fields["direction"] != "outbound" {
		t.Errorf("expected direction 'outbound', got '%v'", fields["direction"])
	}
	// Phone should be masked
	if fields["phone_number"] != "+15*******67" {
		t.Errorf("expected masked phone '+15*******67', got '%v'", fields["phone_number"])
	}
}

func TestBusinessEventLogger_CallCompleted(t *testing.T) {
	logger, logs := newTestLogger()
	bel := NewBusinessEventLogger(logger)

	callID := uuid.New()
	bel.CallCompleted(context.Background(), callID, 3*time.Minute, "closing", "goodbye", true)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}

	entry := entries[0]
	if entry.Message != "call_completed" {
		t.Errorf("expected message 'call_completed', got '%s'", entry.Message)
	}

	fields := entry.ContextMap()
	if fields["event_type"] != "call.completed" {
		t.Errorf("expected event_type 'call.completed', got '%v'", fields["event_type"])
	}
	if fields["final_stage"] != "closing" {
		t.Errorf("expected final_stage 'closing', got '%v'", fields["final_stage"])
	}
	if fields["end_reason"] != "goodbye" {
		t.Errorf("expected end_reason 'goodbye', got '%v'", fields["end_reason"])
	}
	if fields["meeting_scheduled"] != true {
		t.Errorf("expected meeting_scheduled=true, got '%v'", fields["meeting_scheduled"])
	}
}

func TestBusinessEventLogger_StageAdvanced(t *testing.T) {
	logger, logs := newTestLogger()
	bel := NewBusinessEventLogger(logger)

	bel.StageAdvanced(context.Background(), "CA123", "discovery", "value", "seo_benefit")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}

	fields := entries[0].ContextMap()
	if fields["from"] != "discovery" {
		t.Errorf("expected from 'discovery', got '%v'", fields["from"])
	}
	if fields["to"] != "value" {
		t.Errorf("expected to 'value', got '%v'", fields["to"])
	}
	if fields["sub_category"] != "seo_benefit" {
		t.Errorf("expected sub_category 'seo_benefit', got '%v'", fields["sub_category"])
	}
}

func TestBusinessEventLogger_OffTopicRedirect(t *testing.T) {
	logger, logs := newTestLogger()
	bel := NewBusinessEventLogger(logger)

	bel.OffTopicRedirect(context.Background(), "CA123", "weather", 2)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}

	entry := entries[0]
	if entry.Message != "off_topic_redirect" {
		t.Errorf("expected message 'off_topic_redirect', got '%s'", entry.Message)
	}

	fields := entry.ContextMap()
	if fields["category"] != "weather" {
		t.Errorf("expected category 'weather', got '%v'", fields["category"])
	}
	if fields["off_topic_count"] != int64(2) {
		t.Errorf("expected off_topic_count=2, got '%v'", fields["off_topic_count"])
	}
}

func TestBusinessEventLogger_ReportJobProcessed(t *testing.T) {
	logger, logs := newTestLogger()
	bel := NewBusinessEventLogger(logger)

	callID := uuid.New()
	bel.ReportJobProcessed(context.Background(), callID, "completed", 2, 4*time.Second)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}

	fields := entries[0].ContextMap()
	if fields["status"] != "completed" {
		t.Errorf("expected status 'completed', got '%v'", fields["status"])
	}
	if fields["attempts"] != int64(2) {
		t.Errorf("expected attempts=2, got '%v'", fields["attempts"])
	}
}

func TestBusinessEventLogger_CallScored(t *testing.T) {
	logger, logs := newTestLogger()
	bel := NewBusinessEventLogger(logger)

	callID := uuid.New()
	bel.CallScored(context.Background(), callID, "success", 85, 1)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}

	fields := entries[0].ContextMap()
	if fields["outcome"] != "success" {
		t.Errorf("expected outcome 'success', got '%v'", fields["outcome"])
	}
	if fields["score"] != int64(85) {
		t.Errorf("expected score=85, got '%v'", fields["score"])
	}
}

func TestBusinessEventLogger_WebhookReceived(t *testing.T) {
	t.Run("valid webhook logs info", func(t *testing.T) {
		logger, logs := newTestLogger()
		bel := NewBusinessEventLogger(logger)

		bel.WebhookReceived(context.Background(), "/process", "CA123", true)

		entries := logs.All()
		if len(entries) != 1 {
			t.Fatalf("expected 1 log entry, got %d", len(entries))
		}
		if entries[0].Message != "webhook_received" {
			t.Errorf("expected message 'webhook_received', got '%s'", entries[0].Message)
		}
		if entries[0].Level != zapcore.InfoLevel {
			t.Errorf("expected INFO level, got %v", entries[0].Level)
		}
	})

	t.Run("invalid webhook logs warning", func(t *testing.T) {
		logger, logs := newTestLogger()
		bel := NewBusinessEventLogger(logger)

		bel.WebhookReceived(context.Background(), "/process", "CA123", false)

		entries := logs.All()
		if len(entries) != 1 {
			t.Fatalf("expected 1 log entry, got %d", len(entries))
		}
		if entries[0].Message != "webhook_invalid" {
			t.Errorf("expected message 'webhook_invalid', got '%s'", entries[0].Message)
		}
		if entries[0].Level != zapcore.WarnLevel {
			t.Errorf("expected WARN level, got %v", entries[0].Level)
		}
	})
}

func TestBusinessEventLogger_ExternalAPICall(t *testing.T) {
	t.Run("success logs info", func(t *testing.T) {
		logger, logs := newTestLogger()
		bel := NewBusinessEventLogger(logger)

		bel.ExternalAPICall(context.Background(), "openai", "/v1/chat/completions", 2*time.Second, true, 200)

		entries := logs.All()
		if len(entries) != 1 {
			t.Fatalf("expected 1 log entry, got %d", len(entries))
		}
		if entries[0].Level != zapcore.InfoLevel {
			t.Errorf("expected INFO level, got %v", entries[0].Level)
		}
	})

	t.Run("failure logs warning", func(t *testing.T) {
		logger, logs := newTestLogger()
		bel := NewBusinessEventLogger(logger)

		bel.ExternalAPICall(context.Background(), "elevenlabs", "/v1/text-to-speech", time.Second, false, 503)

		entries := logs.All()
		if len(entries) != 1 {
			t.Fatalf("expected 1 log entry, got %d", len(entries))
		}
		if entries[0].Message != "external_api_call_failed" {
			t.Errorf("expected message 'external_api_call_failed', got '%s'", entries[0].Message)
		}
		if entries[0].Level != zapcore.WarnLevel {
			t.Errorf("expected WARN level, got %v", entries[0].Level)
		}
	})
}

func TestBusinessEventLogger_RateLimitExceeded_MasksIdentifier(t *testing.T) {
	logger, logs := newTestLogger()
	bel := NewBusinessEventLogger(logger)

	bel.RateLimitExceeded(context.Background(), "ip", "203.0.113.99")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}

	fields := entries[0].ContextMap()
	if fields["identifier"] != "203.****3.99" {
		t.Errorf("expected masked identifier '203.****3.99', got '%v'", fields["identifier"])
	}
}
