package conversation

import (
	"context"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"github.com/lososs/callagent/internal/domain"
	"github.com/lososs/callagent/internal/lexicon"
)

// redirectFillerChance bounds how often the acknowledgment is swapped
// for a random filler word.
const redirectFillerChance = 0.3

// redirectFallback is spoken when the template store has nothing at all.
const redirectFallback = "Right. But back to business - do you have a website?"

// offTopicEndMessage politely closes a call that drifted too many times.
const offTopicEndMessage = "I understand this isn't a good time. I'll send you the details by email and we can talk when it suits you. Have a nice day!"

// RedirectGenerator produces acknowledge-and-redirect utterances for
// off-topic turns and decides when drift has gone on long enough to end
// the call.
type RedirectGenerator struct {
	redirects   domain.RedirectRepository
	fillers     domain.FillerRepository
	logger      *zap.Logger
	maxOffTopic int

	randFloat func() float64
}

// NewRedirectGenerator creates a generator. maxOffTopic is the number of
// off-topic turns after which the call ends (reaching the threshold,
// not exceeding it, triggers the stop).
func NewRedirectGenerator(redirects domain.RedirectRepository, fillers domain.FillerRepository, maxOffTopic int, logger *zap.Logger) *RedirectGenerator {
	if maxOffTopic <= 0 {
		maxOffTopic = 3
	}
	return &RedirectGenerator{
		redirects:   redirects,
		fillers:     fillers,
		logger:      logger,
		maxOffTopic: maxOffTopic,
		randFloat:   rand.Float64,
	}
}

// CategorizeDrift maps an off-topic utterance to a redirect category via
// the shared keyword table, defaulting to the generic category.
func CategorizeDrift(utterance string) domain.RedirectCategory {
	text := strings.ToLower(utterance)
	for _, entry := range lexicon.RedirectKeywords {
		if lexicon.ContainsAny(text, entry.Words) {
			return entry.Category
		}
	}
	return domain.RedirectGeneral
}

// BuildRedirect increments the session's off-topic counter and returns a
// short acknowledge+redirect utterance for it. The redirect's success is
// unknowable at this point, so usage is logged as not-yet-successful;
// the outcome pass settles it after the call.
func (g *RedirectGenerator) BuildRedirect(ctx context.Context, utterance string, session *domain.CallSession) string {
	session.OffTopicCount++

	category := CategorizeDrift(utterance)
	tmpl, err := g.redirects.GetBest(ctx, category)
	if err != nil || tmpl == nil {
		if err != nil {
			g.logger.Warn("redirect lookup failed", zap.String("category", string(category)), zap.Error(err))
		}
		return redirectFallback
	}

	ack := tmpl.Acknowledgment
	if g.fillers != nil && g.randFloat() < redirectFillerChance {
		if filler, ferr := g.fillers.RandomFiller(ctx); ferr == nil && filler != "" {
			ack = filler
		}
	}

	// Usage stats are best-effort; a failed write never reaches the caller.
	if uerr := g.redirects.RecordUsage(ctx, tmpl.ID, false); uerr != nil {
		g.logger.Warn("redirect usage update failed", zap.Int64("redirect_id", tmpl.ID), zap.Error(uerr))
	}

	return ack + ". " + tmpl.RedirectDirect
}

// ShouldEndCall reports whether the session has drifted off-topic often
// enough that the next response must be a polite termination instead of
// another redirect.
func (g *RedirectGenerator) ShouldEndCall(session *domain.CallSession) bool {
	return session.OffTopicCount >= g.maxOffTopic
}

// EndCallMessage is the polite close used when drift exceeds the limit.
func (g *RedirectGenerator) EndCallMessage() string {
	return offTopicEndMessage
}
