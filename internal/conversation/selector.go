package conversation

import (
	"context"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"github.com/lososs/callagent/internal/domain"
)

const (
	candidateLimit  = 5
	antiRepeatDepth = 3
	fillerChance    = 0.4
)

// Selection is the result of picking a response for one turn.
type Selection struct {
	TemplateID int64
	Text       string
	Tone       domain.Tone
	Strategy   string
	NextStep   string
	Fallback   bool
}

// ResponseSelector ranks and picks one response template for a funnel
// situation. It never returns nothing: when the store yields no
// candidates it falls back to the stage alone, then to a fixed sentence.
type ResponseSelector struct {
	responses domain.ResponseRepository
	fillers   domain.FillerRepository
	logger    *zap.Logger

	// randFloat is swappable in tests to pin filler injection.
	randFloat func() float64
}

// NewResponseSelector creates a selector backed by the given stores.
func NewResponseSelector(responses domain.ResponseRepository, fillers domain.FillerRepository, logger *zap.Logger) *ResponseSelector {
	return &ResponseSelector{
		responses: responses,
		fillers:   fillers,
		logger:    logger,
		randFloat: rand.Float64,
	}
}

// Select picks the best template for (stage, subCategory) given the
// caller's sentiment, avoiding the session's recently used templates.
func (s *ResponseSelector) Select(ctx context.Context, stage domain.Stage, subCategory string, sentiment domain.Sentiment, recentIDs []int64) Selection {
	candidates, err := s.responses.GetCandidates(ctx, stage, subCategory, candidateLimit)
	if err != nil {
		s.logger.Warn("response candidate query failed",
			zap.String("stage", string(stage)),
			zap.String("sub_category", subCategory),
			zap.Error(err),
		)
	}

	if len(candidates) == 0 {
		candidates, err = s.responses.GetByStage(ctx, stage, candidateLimit)
		if err != nil {
			s.logger.Warn("stage fallback query failed", zap.String("stage", string(stage)), zap.Error(err))
		}
	}

	if len(candidates) == 0 {
		return fallbackSelection(stage)
	}

	candidates = filterRecent(candidates, recentIDs)
	chosen := pickBySentiment(candidates, sentiment)

	text := chosen.Text
	if filler := s.randomFiller(ctx); filler != "" && !strings.HasPrefix(text, filler) {
		text = filler + ", " + lowerFirst(text)
	}

	return Selection{
		TemplateID: chosen.ID,
		Text:       text,
		Tone:       chosen.Tone,
		Strategy:   chosen.Strategy,
		NextStep:   chosen.NextStep,
	}
}

// filterRecent drops templates used in the last few selections. When the
// filter would empty the set the anti-repetition rule yields: returning
// something always beats returning nothing.
func filterRecent(candidates []*domain.ResponseTemplate, recentIDs []int64) []*domain.ResponseTemplate {
	if len(recentIDs) > antiRepeatDepth {
		recentIDs = recentIDs[len(recentIDs)-antiRepeatDepth:]
	}
	recent := make(map[int64]bool, len(recentIDs))
	for _, id := range recentIDs {
		recent[id] = true
	}

	filtered := candidates[:0:0]
	for _, c := range candidates {
		if !recent[c.ID] {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return candidates
	}
	return filtered
}

// pickBySentiment prefers empathetic tones for a negative caller and
// upbeat tones for a positive one; otherwise the top-ranked candidate
// (the store already orders by success rate) wins.
func pickBySentiment(candidates []*domain.ResponseTemplate, sentiment domain.Sentiment) *domain.ResponseTemplate {
	switch sentiment {
	case domain.SentimentNegative:
		for _, c := range candidates {
			if c.Tone.Empathetic() {
				return c
			}
		}
	case domain.SentimentPositive:
		for _, c := range candidates {
			if c.Tone.Upbeat() {
				return c
			}
		}
	}
	return candidates[0]
}

func (s *ResponseSelector) randomFiller(ctx context.Context) string {
	if s.fillers == nil || s.randFloat() >= fillerChance {
		return ""
	}
	filler, err := s.fillers.RandomFiller(ctx)
	if err != nil {
		return ""
	}
	return filler
}

// stageFallbacks guarantee the caller always hears something coherent
// even with an empty template store.
var stageFallbacks = map[domain.Stage]string{
	domain.StageIntro:     "Hi, this is Petra from Moravia Webworks. Do you have a minute?",
	domain.StageDiscovery: "Tell me, does your company have a website?",
	domain.StageValue:     "A website brings you new customers around the clock. Want to hear how?",
	domain.StageObjection: "I understand your point. Could we meet so I can show you some concrete examples?",
	domain.StageClosing:   "Let's set up a short meeting. Would tomorrow or the day after work for you?",
}

func fallbackSelection(stage domain.Stage) Selection {
	text, ok := stageFallbacks[stage]
	if !ok {
		text = "Would you like to hear more about what we do?"
	}
	return Selection{TemplateID: 0, Text: text, Tone: domain.ToneFriendly, Strategy: "fallback", Fallback: true}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
