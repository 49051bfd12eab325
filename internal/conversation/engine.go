package conversation

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/lososs/callagent/internal/clock"
	"github.com/lososs/callagent/internal/domain"
	"github.com/lososs/callagent/internal/lexicon"
	"github.com/lososs/callagent/internal/metrics"
)

// Fixed utterances for the engine's failure and termination paths. Every
// branch of ProcessTurn ends in one of these or in a selected template:
// the caller must never be left with silence.
const (
	promptSpeakUp     = "I can't hear you. Could you speak up, please?"
	promptRepeat      = "I didn't catch that. Could you say it again, please?"
	goodbyeNoInput    = "I'm sorry, I can't understand you. Have a nice day."
	goodbyeTimeLimit  = "I have to wrap up now. Thanks for your time, have a nice day!"
	goodbyeRejection  = "Understood, thanks for your time. Goodbye."
)

// Config holds the conversation thresholds. The source history carried
// two competing values for the call cap (270s vs 290s) and the off-topic
// limit (2 vs 3); the defaults here are the canonical product decision
// and both stay configurable.
type Config struct {
	MaxCallSeconds    int
	MaxOffTopic       int
	MaxRetries        int
	MaxResponseChars  int
	MinConfidence     float64
	MinUtteranceChars int
}

// DefaultConfig returns the canonical thresholds.
func DefaultConfig() Config {
	return Config{
		MaxCallSeconds:    270,
		MaxOffTopic:       3,
		MaxRetries:        2,
		MaxResponseChars:  250,
		MinConfidence:     0.3,
		MinUtteranceChars: 2,
	}
}

// Naturalizer optionally rephrases a selected template so it fits the
// caller's last utterance. Implementations must be fast and fallible:
// the engine falls back to the raw template on any error.
type Naturalizer interface {
	Naturalize(ctx context.Context, template, utterance string, history []domain.Turn) (string, error)
}

// TurnInput is one recognized caller utterance plus telephony metadata.
type TurnInput struct {
	Utterance   string
	Confidence  float64
	CallElapsed int // seconds since call start, as reported by telephony
}

// TurnResult is what the telephony layer speaks and does next.
type TurnResult struct {
	Text        string
	EndCall     bool
	Stage       domain.Stage
	SubCategory string
	OffTopic    bool
	Retry       bool
}

// Engine drives one conversation turn end to end: input-quality checks,
// rejection and time-cap screening, topic/stage classification, response
// selection, and the defensive goodbye scan on the way out.
type Engine struct {
	cfg         Config
	topics      *TopicClassifier
	selector    *ResponseSelector
	redirects   *RedirectGenerator
	naturalizer Naturalizer
	clock       clock.Clock
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewEngine wires the engine. naturalizer and m may be nil.
func NewEngine(
	cfg Config,
	topics *TopicClassifier,
	selector *ResponseSelector,
	redirects *RedirectGenerator,
	naturalizer Naturalizer,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Engine {
	if clk == nil {
		clk = clock.New()
	}
	return &Engine{
		cfg:         cfg,
		topics:      topics,
		selector:    selector,
		redirects:   redirects,
		naturalizer: naturalizer,
		clock:       clk,
		metrics:     m,
		logger:      logger,
	}
}

// Greeting opens a call: it selects an intro template, personalizes it
// with the contact's name, and records it as the first agent turn.
func (e *Engine) Greeting(ctx context.Context, session *domain.CallSession, name, company string) string {
	sel := e.selector.Select(ctx, domain.StageIntro, SubValueFirst, domain.SentimentNeutral, nil)
	session.RecordResponse(sel.TemplateID)

	greeting := sel.Text
	if name != "" {
		greeting = "Good morning, " + name + ". " + greeting
		session.CustomerName = name
	}
	session.Company = company

	session.AppendTurn(domain.SpeakerAgent, greeting, e.clock.NowUTC())
	return greeting
}

// ProcessTurn handles one caller utterance and always produces a
// speakable response. The checks run in strict order: time cap, hard
// rejection, input quality, then the classification pipeline.
func (e *Engine) ProcessTurn(ctx context.Context, session *domain.CallSession, input TurnInput) TurnResult {
	if e.metrics != nil {
		e.metrics.RecordTurn(string(session.Stage))
	}

	if session.Terminated() {
		return e.endResult(session, goodbyeRejection)
	}

	// 1. Hard time cap, independent of what was said.
	if input.CallElapsed >= e.cfg.MaxCallSeconds {
		session.Terminate(domain.EndReasonTimeLimit)
		return e.endResult(session, goodbyeTimeLimit)
	}

	utterance := strings.TrimSpace(input.Utterance)

	// 2. Explicit do-not-call phrases end the call from any stage.
	if IsHardRejection(utterance) {
		session.AppendTurn(domain.SpeakerCaller, utterance, e.clock.NowUTC())
		session.Terminate(domain.EndReasonHardRejection)
		return e.endResult(session, goodbyeRejection)
	}

	// 3. Input quality: empty, too short, or low recognition confidence.
	// Bounded retries, then a graceful close. Not an error path: bad
	// audio is a normal state-machine input on a phone line.
	if badInput(utterance, input.Confidence, e.cfg) {
		if session.RetryCount >= e.cfg.MaxRetries {
			session.Terminate(domain.EndReasonNoInput)
			return e.endResult(session, goodbyeNoInput)
		}
		session.RetryCount++
		if e.metrics != nil {
			e.metrics.RecordRetryPrompt()
		}
		prompt := promptSpeakUp
		if utterance != "" {
			prompt = promptRepeat
		}
		return TurnResult{Text: prompt, Stage: session.Stage, SubCategory: session.SubCategory, Retry: true}
	}
	session.RetryCount = 0
	session.AppendTurn(domain.SpeakerCaller, utterance, e.clock.NowUTC())

	session.Sentiment = DetectSentiment(utterance)

	// 4. Off-topic drift: redirect, or end the call when the caller has
	// drifted too many times. Drift never advances the funnel.
	if onTopic, topic := e.topics.IsOnTopic(utterance); !onTopic {
		redirect := e.redirects.BuildRedirect(ctx, utterance, session)
		if e.metrics != nil {
			e.metrics.RecordOffTopic(string(CategorizeDrift(utterance)))
		}
		if e.redirects.ShouldEndCall(session) {
			session.Terminate(domain.EndReasonOffTopicLimit)
			return e.endResult(session, e.redirects.EndCallMessage())
		}
		session.AppendTurn(domain.SpeakerAgent, redirect, e.clock.NowUTC())
		return TurnResult{Text: redirect, Stage: session.Stage, SubCategory: session.SubCategory, OffTopic: true}
	} else if topic != "" {
		e.logger.Debug("topic matched", zap.String("topic", topic), zap.String("call_id", session.ProviderCallID))
	}
	session.OffTopicCount = 0

	// 5. Stage classification and response selection.
	prevStage := session.Stage
	nextStage, subCategory := ClassifyStage(utterance, session.Stage)
	session.Stage = nextStage
	session.SubCategory = subCategory
	if e.metrics != nil && nextStage != prevStage {
		e.metrics.RecordStageTransition(string(prevStage), string(nextStage))
	}

	if lexicon.ContainsAny(strings.ToLower(utterance), lexicon.ClosingIntent) {
		session.MeetingScheduled = true
	}

	sel := e.selector.Select(ctx, nextStage, subCategory, session.Sentiment, session.RecentResponseIDs(antiRepeatDepth))
	session.RecordResponse(sel.TemplateID)
	if e.metrics != nil && sel.Fallback {
		e.metrics.RecordFallbackResponse()
	}

	text := e.naturalize(ctx, sel.Text, utterance, session)
	text = TruncateAtSentence(text, e.cfg.MaxResponseChars)

	// 6. Defensive goodbye scan: the selected or naturalized text may
	// itself close the conversation even though no rule asked for it.
	if ContainsGoodbye(text) {
		session.AppendTurn(domain.SpeakerAgent, text, e.clock.NowUTC())
		session.Terminate(domain.EndReasonGoodbye)
		return TurnResult{Text: text, EndCall: true, Stage: domain.StageTerminated, SubCategory: subCategory}
	}

	session.AppendTurn(domain.SpeakerAgent, text, e.clock.NowUTC())
	return TurnResult{Text: text, Stage: nextStage, SubCategory: subCategory}
}

// naturalize asks the LLM to smooth the template; any failure or an
// oversized rewrite falls back to the template untouched.
func (e *Engine) naturalize(ctx context.Context, template, utterance string, session *domain.CallSession) string {
	if e.naturalizer == nil {
		return template
	}
	text, err := e.naturalizer.Naturalize(ctx, template, utterance, session.History)
	if err != nil {
		e.logger.Warn("naturalization failed, using template",
			zap.String("call_id", session.ProviderCallID),
			zap.Error(err),
		)
		return template
	}
	if text == "" || len(text) > 300 {
		return template
	}
	return text
}

func (e *Engine) endResult(session *domain.CallSession, text string) TurnResult {
	session.AppendTurn(domain.SpeakerAgent, text, e.clock.NowUTC())
	if e.metrics != nil {
		e.metrics.RecordTermination(string(session.EndReason))
	}
	return TurnResult{Text: text, EndCall: true, Stage: domain.StageTerminated}
}

func badInput(utterance string, confidence float64, cfg Config) bool {
	if utterance == "" || len(utterance) < cfg.MinUtteranceChars {
		return true
	}
	return confidence > 0 && confidence < cfg.MinConfidence
}
