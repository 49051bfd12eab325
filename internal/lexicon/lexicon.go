// Package lexicon is the single source of keyword and phrase sets used by
// the conversation classifiers. Every classification axis (rejection,
// objections, closing intent, sentiment, off-topic categories, goodbyes)
// reads from here so the lists cannot drift apart between components.
package lexicon

import (
	"strings"

	"github.com/lososs/callagent/internal/domain"
)

// ContinuityPhrases are call-mechanics utterances (greetings, channel
// checks, acknowledgments). A short utterance containing one of these is
// never treated as topic drift.
var ContinuityPhrases = []string{
	"hello", "hi there", "good morning", "good afternoon",
	"can you hear me", "are you there", "i can hear you",
	"yes", "yeah", "no", "okay", "ok", "sure",
	"one moment", "hold on", "sorry", "pardon", "please",
}

// HardRejections end the call immediately when present in a caller
// utterance. Only explicit, unambiguous refusals belong here; soft
// put-offs ("not now", "I'm busy") are objections and stay in the funnel.
var HardRejections = []string{
	"do not call", "don't call me", "never call", "stop calling",
	"remove me", "take me off", "unsubscribe", "delete my number",
	"i said no", "not interested and", "stop", "this is harassment",
}

// ClosingIntent signals the caller is ready to schedule.
var ClosingIntent = []string{
	"meeting", "appointment", "schedule", "let's meet",
	"tomorrow", "monday", "tuesday", "wednesday", "thursday", "friday",
	"next week", "what time", "calendar",
}

// ObjectionFamilies maps an objection sub-category to the phrases that
// signal it. Evaluation order matters: earlier families win ties.
var ObjectionFamilies = []struct {
	SubCategory string
	Phrases     []string
}{
	{"no_time", []string{"no time", "busy", "not now", "later", "in a rush", "have to go"}},
	{"no_money", []string{"expensive", "too much", "how much", "price", "budget", "no money", "can't afford", "cost"}},
	{"satisfied", []string{"already have", "we're happy", "we are happy", "satisfied", "don't need a new"}},
	{"need_consultation", []string{"ask my", "talk to my", "my boss", "my partner", "my wife", "my husband", "the team decides"}},
	{"no_interest", []string{"not interested", "no interest", "don't want", "no thanks"}},
}

// ValueCuriosity signals the caller wants to hear the pitch.
var ValueCuriosity = []string{
	"how does", "how would", "why", "what does it do", "what do you do",
	"tell me more", "interested", "benefit", "what's the advantage", "how it works",
}

// Value sub-topic keyword sets, checked in order; the first hit decides
// the sub-category and "seo" is the default pitch.
var (
	ValueSEO        = []string{"seo", "google", "search", "ranking", "found online"}
	ValueROI        = []string{"roi", "return", "pay off", "worth it", "how much more"}
	ValueCompetitor = []string{"competitor", "competition", "rivals", "other companies"}
)

// Discovery phrases about possessing or lacking the asset we sell.
var (
	HasAsset = []string{"we have a website", "we have a site", "got a website", "our website", "already have a web"}
	NoAsset  = []string{"no website", "don't have a website", "we don't have", "no site", "not yet", "never got around"}
)

// GoodbyePhrases in a generated response mean the agent is closing the
// call; the engine hangs up after playing such a response.
var GoodbyePhrases = []string{
	"goodbye", "good bye", "have a nice day", "have a great day",
	"thanks for your time", "thank you for your time", "take care", "talk soon",
}

// Sentiment word lists for the word-count heuristic.
var (
	PositiveWords = []string{
		"yes", "yeah", "sure", "great", "good", "interested", "awesome",
		"sounds good", "okay", "agreed", "perfect", "let's do it", "fine",
	}
	NegativeWords = []string{
		"no", "not", "don't", "won't", "can't", "never", "problem",
		"expensive", "difficult", "refuse", "bad", "annoying",
	}
)

// RedirectKeywords maps off-topic categories to their trigger words. The
// generic fallback category has no keywords; it catches everything else.
var RedirectKeywords = []struct {
	Category domain.RedirectCategory
	Words    []string
}{
	{domain.RedirectWeather, []string{"weather", "raining", "rain", "snow", "sunny", "outside", "storm"}},
	{domain.RedirectSports, []string{"football", "soccer", "hockey", "game last night", "sports", "match"}},
	{domain.RedirectPolitics, []string{"politics", "government", "election", "president", "parliament"}},
	{domain.RedirectHealth, []string{"sick", "ill", "doctor", "hospital", "hurts", "my health"}},
	{domain.RedirectPersonal, []string{"my kids", "my family", "vacation", "holiday", "my dog", "my wife", "my husband"}},
	{domain.RedirectComplaint, []string{"terrible", "awful", "complain", "hate", "fed up", "everything is"}},
	{domain.RedirectSmalltalk, []string{"how are you", "how's it going", "nice to talk"}},
}

// ContainsAny reports whether text (expected lower-cased) contains any of
// the given phrases.
func ContainsAny(text string, phrases []string) bool {
	return MatchAny(text, phrases) != ""
}

// MatchAny returns the first phrase contained in text, or "".
func MatchAny(text string, phrases []string) string {
	for _, p := range phrases {
		if p != "" && strings.Contains(text, p) {
			return p
		}
	}
	return ""
}
