package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lososs/callagent/internal/conversation"
	apperrors "github.com/lososs/callagent/internal/errors"
	"github.com/lososs/callagent/internal/tts"
)

// mockCallFlow is a mock implementation of CallFlow for testing.
type mockCallFlow struct {
	StartInboundCalls  int
	StartOutboundCalls int
	HandleTurnCalls    int
	HandleStatusCalls  int

	Greeting     string
	TurnResult   conversation.TurnResult
	StartError   error
	TurnError    error
	StatusError  error
	LastCampaign string
	LastElapsed  int
	LastStatus   string
}

func (m *mockCallFlow) StartInbound(ctx context.Context, providerCallID, callerNumber string) (string, error) {
	m.StartInboundCalls++
	if m.StartError != nil {
		return "", m.StartError
	}
	return m.Greeting, nil
}

func (m *mockCallFlow) StartOutbound(ctx context.Context, providerCallID, calleeNumber, campaign string) (string, error) {
	m.StartOutboundCalls++
	m.LastCampaign = campaign
	if m.StartError != nil {
		return "", m.StartError
	}
	return m.Greeting, nil
}

func (m *mockCallFlow) HandleTurn(ctx context.Context, providerCallID, utterance string, confidence float64, callElapsed int) (conversation.TurnResult, error) {
	m.HandleTurnCalls++
	m.LastElapsed = callElapsed
	if m.TurnError != nil {
		return conversation.TurnResult{}, m.TurnError
	}
	return m.TurnResult, nil
}

func (m *mockCallFlow) HandleStatus(ctx context.Context, providerCallID, callStatus string) error {
	m.HandleStatusCalls++
	m.LastStatus = callStatus
	return m.StatusError
}

// mockSpeech is a mock implementation of Speech for testing.
type mockSpeech struct {
	Key   string
	Err   error
	Calls int
}

func (m *mockSpeech) Synthesize(ctx context.Context, text string) (string, error) {
	m.Calls++
	if m.Err != nil {
		return "", m.Err
	}
	return m.Key, nil
}

func newTestVoiceHandler(flow *mockCallFlow, speech Speech, audio *tts.Cache) *VoiceHandler {
	return NewVoiceHandler(VoiceHandlerConfig{
		Calls:     flow,
		Speech:    speech,
		Audio:     audio,
		PublicURL: "https://agent.example.com",
		Logger:    zap.NewNop(),
	})
}

func newTestRouter(h *VoiceHandler) chi.Router {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func postWebhook(t *testing.T, router http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestVoiceHandler_HandleInbound(t *testing.T) {
	flow := &mockCallFlow{Greeting: "Good morning, do you have a website?"}
	router := newTestRouter(newTestVoiceHandler(flow, nil, nil))

	form := url.Values{}
	form.Set("CallSid", "CA100")
	form.Set("From", "+420777111222")

	rr := postWebhook(t, router, "/inbound", form)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/xml; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Good morning, do you have a website?") {
		t.Errorf("greeting missing from TwiML: %s", body)
	}
	if !strings.Contains(body, `action="/process?call_time=0"`) {
		t.Errorf("gather action missing: %s", body)
	}
	if !strings.Contains(body, "<Redirect>/process?call_time=0</Redirect>") {
		t.Errorf("fallback redirect missing: %s", body)
	}
	if flow.StartInboundCalls != 1 {
		t.Errorf("StartInboundCalls = %d, want 1", flow.StartInboundCalls)
	}
}

func TestVoiceHandler_HandleInbound_MissingCallSid(t *testing.T) {
	flow := &mockCallFlow{Greeting: "hello"}
	router := newTestRouter(newTestVoiceHandler(flow, nil, nil))

	rr := postWebhook(t, router, "/inbound", url.Values{})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
	if flow.StartInboundCalls != 0 {
		t.Error("service must not be called on a malformed webhook")
	}
}

func TestVoiceHandler_HandleInbound_ServiceError(t *testing.T) {
	flow := &mockCallFlow{StartError: errors.New("db down")}
	router := newTestRouter(newTestVoiceHandler(flow, nil, nil))

	form := url.Values{}
	form.Set("CallSid", "CA100")

	rr := postWebhook(t, router, "/inbound", form)

	// The caller hears an apology, never an HTTP error.
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "<Hangup") {
		t.Errorf("apology response should hang up: %s", body)
	}
}

func TestVoiceHandler_HandleOutbound_Campaign(t *testing.T) {
	flow := &mockCallFlow{Greeting: "hello there"}
	router := newTestRouter(newTestVoiceHandler(flow, nil, nil))

	form := url.Values{}
	form.Set("CallSid", "CA200")
	form.Set("To", "+420777333444")

	rr := postWebhook(t, router, "/outbound?campaign=brno-march", form)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if flow.LastCampaign != "brno-march" {
		t.Errorf("campaign = %q, want brno-march", flow.LastCampaign)
	}
}

func TestVoiceHandler_HandleProcess(t *testing.T) {
	flow := &mockCallFlow{TurnResult: conversation.TurnResult{Text: "Great, tell me more."}}
	router := newTestRouter(newTestVoiceHandler(flow, nil, nil))

	form := url.Values{}
	form.Set("CallSid", "CA100")
	form.Set("SpeechResult", "we have a website")
	form.Set("Confidence", "0.9")

	rr := postWebhook(t, router, "/process?call_time=30", form)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if flow.LastElapsed != 30 {
		t.Errorf("elapsed = %d, want 30", flow.LastElapsed)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `action="/process?call_time=45"`) {
		t.Errorf("next action should advance call_time by a full turn: %s", body)
	}
}

func TestVoiceHandler_HandleProcess_Retry(t *testing.T) {
	flow := &mockCallFlow{TurnResult: conversation.TurnResult{Text: "Could you say that again?", Retry: true}}
	router := newTestRouter(newTestVoiceHandler(flow, nil, nil))

	form := url.Values{}
	form.Set("CallSid", "CA100")

	rr := postWebhook(t, router, "/process?call_time=30", form)

	if !strings.Contains(rr.Body.String(), `action="/process?call_time=38"`) {
		t.Errorf("retry should advance call_time by the shorter step: %s", rr.Body.String())
	}
}

func TestVoiceHandler_HandleProcess_EndCall(t *testing.T) {
	flow := &mockCallFlow{TurnResult: conversation.TurnResult{Text: "Thanks, goodbye.", EndCall: true}}
	router := newTestRouter(newTestVoiceHandler(flow, nil, nil))

	form := url.Values{}
	form.Set("CallSid", "CA100")

	rr := postWebhook(t, router, "/process?call_time=200", form)

	body := rr.Body.String()
	if !strings.Contains(body, "Thanks, goodbye.") {
		t.Errorf("goodbye text missing: %s", body)
	}
	if !strings.Contains(body, "<Hangup") {
		t.Errorf("end of call must hang up: %s", body)
	}
	if strings.Contains(body, "<Gather") {
		t.Errorf("ended call must not keep listening: %s", body)
	}
}

func TestVoiceHandler_HandleProcess_SessionLost(t *testing.T) {
	flow := &mockCallFlow{TurnError: apperrors.ErrSessionNotFound}
	router := newTestRouter(newTestVoiceHandler(flow, nil, nil))

	form := url.Values{}
	form.Set("CallSid", "CA100")

	rr := postWebhook(t, router, "/process", form)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "<Hangup") {
		t.Errorf("lost session should end with a spoken apology: %s", rr.Body.String())
	}
}

func TestVoiceHandler_HandleProcess_SynthesizedAudio(t *testing.T) {
	key := strings.Repeat("ab", 32)
	flow := &mockCallFlow{TurnResult: conversation.TurnResult{Text: "Great, tell me more."}}
	speech := &mockSpeech{Key: key}
	router := newTestRouter(newTestVoiceHandler(flow, speech, nil))

	form := url.Values{}
	form.Set("CallSid", "CA100")

	rr := postWebhook(t, router, "/process", form)

	body := rr.Body.String()
	if !strings.Contains(body, "<Play>https://agent.example.com/audio/"+key+"</Play>") {
		t.Errorf("synthesized audio should play inside the gather: %s", body)
	}
	if speech.Calls != 1 {
		t.Errorf("speech calls = %d, want 1", speech.Calls)
	}
}

func TestVoiceHandler_HandleProcess_SynthesisFails_SayFallback(t *testing.T) {
	flow := &mockCallFlow{TurnResult: conversation.TurnResult{Text: "Great, tell me more."}}
	speech := &mockSpeech{Err: errors.New("api down")}
	router := newTestRouter(newTestVoiceHandler(flow, speech, nil))

	form := url.Values{}
	form.Set("CallSid", "CA100")

	rr := postWebhook(t, router, "/process", form)

	body := rr.Body.String()
	if !strings.Contains(body, "<Say") || !strings.Contains(body, "Great, tell me more.") {
		t.Errorf("failed synthesis should fall back to Say: %s", body)
	}
}

func TestVoiceHandler_HandleCallStatus(t *testing.T) {
	flow := &mockCallFlow{}
	router := newTestRouter(newTestVoiceHandler(flow, nil, nil))

	form := url.Values{}
	form.Set("CallSid", "CA100")
	form.Set("CallStatus", "completed")

	rr := postWebhook(t, router, "/call-status", form)

	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rr.Code)
	}
	if flow.HandleStatusCalls != 1 || flow.LastStatus != "completed" {
		t.Errorf("HandleStatusCalls = %d, LastStatus = %q", flow.HandleStatusCalls, flow.LastStatus)
	}
}

func TestVoiceHandler_HandleAudio(t *testing.T) {
	cache, err := tts.NewCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	key := tts.Key("hello", "voice-1")
	if err := cache.Put(key, []byte("mp3-bytes")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	router := newTestRouter(newTestVoiceHandler(&mockCallFlow{}, nil, cache))

	req := httptest.NewRequest(http.MethodGet, "/audio/"+key, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rr.Body.String() != "mp3-bytes" {
		t.Errorf("body = %q", rr.Body.String())
	}
}

func TestVoiceHandler_HandleAudio_RejectsInvalidKey(t *testing.T) {
	dir := t.TempDir()
	cache, err := tts.NewCache(dir)
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	// A file outside the cache that a traversal key would reach.
	outside := filepath.Join(dir, "..", "secret.txt")
	if err := os.WriteFile(outside, []byte("secret"), 0o600); err != nil {
		t.Fatalf("writing bait file: %v", err)
	}

	router := newTestRouter(newTestVoiceHandler(&mockCallFlow{}, nil, cache))

	for _, key := range []string{"..%2Fsecret.txt", "notahexkey", strings.Repeat("g", 64)} {
		req := httptest.NewRequest(http.MethodGet, "/audio/"+key, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("key %q: status = %d, want 404", key, rr.Code)
		}
	}
}
