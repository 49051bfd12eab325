package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lososs/callagent/internal/conversation"
	apperrors "github.com/lososs/callagent/internal/errors"
	"github.com/lososs/callagent/internal/telephony"
	"github.com/lososs/callagent/internal/tts"
)

const speechLanguage = "en-US"

// Per-turn increments for the call_time counter carried through the
// action URLs. A retry round trips faster than a full turn.
const (
	turnSeconds  = 15
	retrySeconds = 8
)

const apologyText = "I'm sorry, something went wrong on our side. Please try again later."

// CallFlow is the conversation lifecycle the voice webhooks drive.
type CallFlow interface {
	StartInbound(ctx context.Context, providerCallID, callerNumber string) (string, error)
	StartOutbound(ctx context.Context, providerCallID, calleeNumber, campaign string) (string, error)
	HandleTurn(ctx context.Context, providerCallID, utterance string, confidence float64, callElapsed int) (conversation.TurnResult, error)
	HandleStatus(ctx context.Context, providerCallID, callStatus string) error
}

// Speech synthesizes a phrase and returns its audio cache key.
type Speech interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// VoiceHandler answers the telephony provider's webhooks with TwiML.
// Every handler must produce speakable TwiML even on failure: an HTTP
// error here means dead air for the person on the line.
type VoiceHandler struct {
	calls     CallFlow
	validator *telephony.Validator
	speech    Speech
	audio     *tts.Cache
	publicURL string
	logger    *zap.Logger
}

// VoiceHandlerConfig holds configuration for VoiceHandler.
type VoiceHandlerConfig struct {
	Calls     CallFlow
	Validator *telephony.Validator
	Speech    Speech
	Audio     *tts.Cache
	PublicURL string
	Logger    *zap.Logger
}

// NewVoiceHandler creates a VoiceHandler. Validator may be nil to skip
// signature checks in development; Speech and Audio may be nil to fall
// back to the provider's built-in voice.
func NewVoiceHandler(cfg VoiceHandlerConfig) *VoiceHandler {
	if cfg.Logger == nil {
		panic("logger is required")
	}
	return &VoiceHandler{
		calls:     cfg.Calls,
		validator: cfg.Validator,
		speech:    cfg.Speech,
		audio:     cfg.Audio,
		publicURL: cfg.PublicURL,
		logger:    cfg.Logger,
	}
}

// RegisterRoutes registers the provider webhook routes.
func (h *VoiceHandler) RegisterRoutes(r chi.Router) {
	r.Post("/inbound", h.HandleInbound)
	r.Post("/outbound", h.HandleOutbound)
	r.Post("/process", h.HandleProcess)
	r.Post("/call-status", h.HandleCallStatus)
	r.Get("/audio/{key}", h.HandleAudio)
}

// HandleInbound answers the first webhook of an incoming call.
func (h *VoiceHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	wh, err := telephony.ParseWebhook(r)
	if err != nil {
		h.logger.Warn("malformed inbound webhook", zap.Error(err))
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	greeting, err := h.calls.StartInbound(r.Context(), wh.CallSID, wh.From)
	if err != nil {
		h.logger.Error("failed to start inbound call",
			zap.String("call_sid", wh.CallSID),
			zap.Error(err),
		)
		h.writeApology(w)
		return
	}

	h.writeGather(w, r.Context(), greeting, 0, false)
}

// HandleOutbound answers the webhook fired when a campaign callee picks
// up. The campaign name rides in on the webhook URL query.
func (h *VoiceHandler) HandleOutbound(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	wh, err := telephony.ParseWebhook(r)
	if err != nil {
		h.logger.Warn("malformed outbound webhook", zap.Error(err))
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	campaign := r.URL.Query().Get("campaign")
	greeting, err := h.calls.StartOutbound(r.Context(), wh.CallSID, wh.To, campaign)
	if err != nil {
		h.logger.Error("failed to start outbound call",
			zap.String("call_sid", wh.CallSID),
			zap.Error(err),
		)
		h.writeApology(w)
		return
	}

	h.writeGather(w, r.Context(), greeting, 0, false)
}

// HandleProcess runs one conversation turn for a speech result.
func (h *VoiceHandler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	wh, err := telephony.ParseWebhook(r)
	if err != nil {
		h.logger.Warn("malformed process webhook", zap.Error(err))
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	callTime := parseCallTime(r.URL.Query().Get("call_time"))

	result, err := h.calls.HandleTurn(r.Context(), wh.CallSID, wh.SpeechResult, wh.Confidence, callTime)
	if err != nil {
		if errors.Is(err, apperrors.ErrSessionNotFound) {
			// Session lost, typically after a restart mid-call.
			h.logger.Warn("no session for call", zap.String("call_sid", wh.CallSID))
		} else {
			h.logger.Error("turn processing failed",
				zap.String("call_sid", wh.CallSID),
				zap.Error(err),
			)
		}
		h.writeApology(w)
		return
	}

	if result.EndCall {
		h.writeGoodbye(w, r.Context(), result.Text)
		return
	}

	next := callTime + turnSeconds
	if result.Retry {
		next = callTime + retrySeconds
	}
	h.writeGather(w, r.Context(), result.Text, next, result.Retry)
}

// HandleCallStatus processes asynchronous call-status callbacks.
func (h *VoiceHandler) HandleCallStatus(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	wh, err := telephony.ParseWebhook(r)
	if err != nil {
		h.logger.Warn("malformed status webhook", zap.Error(err))
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if err := h.calls.HandleStatus(r.Context(), wh.CallSID, wh.CallStatus); err != nil {
		h.logger.Error("status callback failed",
			zap.String("call_sid", wh.CallSID),
			zap.String("call_status", wh.CallStatus),
			zap.Error(err),
		)
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleAudio serves synthesized audio back to the provider.
func (h *VoiceHandler) HandleAudio(w http.ResponseWriter, r *http.Request) {
	if h.audio == nil {
		http.NotFound(w, r)
		return
	}

	key := chi.URLParam(r, "key")
	if !tts.ValidKey(key) {
		http.NotFound(w, r)
		return
	}
	if !h.audio.Has(key) {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFile(w, r, h.audio.Path(key))
}

func (h *VoiceHandler) authorized(r *http.Request) bool {
	if h.validator == nil {
		return true
	}
	return h.validator.Validate(r, h.publicURL)
}

// writeGather speaks text and listens for the next utterance. The
// trailing Redirect catches gathers the provider abandons without a
// callback.
func (h *VoiceHandler) writeGather(w http.ResponseWriter, ctx context.Context, text string, callTime int, retry bool) {
	action := fmt.Sprintf("/process?call_time=%d", callTime)

	gather := telephony.NewGather(action, speechLanguage)
	h.attachSpeech(ctx, &gather, text)

	resp := telephony.NewResponse().Gather(gather).Redirect(action)
	if err := resp.Write(w); err != nil {
		h.logger.Error("failed to write TwiML response", zap.Error(err))
	}
}

// writeGoodbye speaks the final phrase and hangs up.
func (h *VoiceHandler) writeGoodbye(w http.ResponseWriter, ctx context.Context, text string) {
	resp := telephony.NewResponse()
	if url := h.audioURL(ctx, text); url != "" {
		resp.Play(url)
	} else {
		resp.Say(text, speechLanguage)
	}
	resp.Pause(1).Hangup()

	if err := resp.Write(w); err != nil {
		h.logger.Error("failed to write TwiML response", zap.Error(err))
	}
}

func (h *VoiceHandler) writeApology(w http.ResponseWriter) {
	resp := telephony.NewResponse().Say(apologyText, speechLanguage).Hangup()
	if err := resp.Write(w); err != nil {
		h.logger.Error("failed to write TwiML response", zap.Error(err))
	}
}

// attachSpeech prefers synthesized audio inside the gather so the
// caller can barge in over it; the provider voice is the fallback.
func (h *VoiceHandler) attachSpeech(ctx context.Context, gather *telephony.Gather, text string) {
	if url := h.audioURL(ctx, text); url != "" {
		gather.Play = &telephony.Play{URL: url}
		return
	}
	gather.Say = &telephony.Say{Text: text, Language: speechLanguage}
}

func (h *VoiceHandler) audioURL(ctx context.Context, text string) string {
	if h.speech == nil {
		return ""
	}
	key, err := h.speech.Synthesize(ctx, text)
	if err != nil {
		h.logger.Warn("speech synthesis failed, falling back to provider voice", zap.Error(err))
		return ""
	}
	return h.publicURL + "/audio/" + key
}

func parseCallTime(raw string) int {
	if raw == "" {
		return 0
	}
	t, err := strconv.Atoi(raw)
	if err != nil || t < 0 {
		return 0
	}
	return t
}
