package domain

import "time"

// Tone tags a response template with its delivery style. The selector
// biases toward certain tones depending on caller sentiment.
type Tone string

const (
	ToneEmpathetic   Tone = "empathetic"
	ToneCalm         Tone = "calm"
	ToneEnthusiastic Tone = "enthusiastic"
	ToneConfident    Tone = "confident"
	ToneFriendly     Tone = "friendly"
	ToneDirect       Tone = "direct"
	ToneUrgent       Tone = "urgent"
	ToneFactual      Tone = "factual"
)

// Empathetic tones are preferred when the caller sounds negative,
// upbeat tones when positive.
func (t Tone) Empathetic() bool {
	return t == ToneEmpathetic || t == ToneCalm
}

func (t Tone) Upbeat() bool {
	return t == ToneEnthusiastic || t == ToneConfident
}

// ResponseTemplate is a pre-authored reply variant for one funnel
// situation. Seeded once at startup; only its usage counters mutate.
//
// SuccessRate and ConversionRate are always recomputed from the counters
// in a single atomic statement, never written independently.
type ResponseTemplate struct {
	ID          int64
	Stage       Stage
	SubCategory string
	Situation   string

	Text         string
	Alternative1 *string
	Alternative2 *string

	Strategy         string
	Tone             Tone
	UrgencyLevel     int
	ExpectedReply    string
	NextStep         string

	TimesUsed         int
	TimesLedToMeeting int
	SuccessRate       float64
	ConversionRate    float64
	LastUsedAt        *time.Time
}

// ComputeSuccessRate recomputes a percentage from usage counters.
// An unused template reports the seeded prior of 50.0 so new variants
// are not buried under proven ones.
func ComputeSuccessRate(timesUsed, timesSuccessful int) float64 {
	if timesUsed <= 0 {
		return 50.0
	}
	return float64(timesSuccessful) / float64(timesUsed) * 100
}

// ComputeConversionRate recomputes a percentage from usage counters,
// defaulting to 0 for unused templates.
func ComputeConversionRate(timesUsed, timesConverted int) float64 {
	if timesUsed <= 0 {
		return 0.0
	}
	return float64(timesConverted) / float64(timesUsed) * 100
}

// RedirectCategory classifies what the caller drifted off to.
type RedirectCategory string

const (
	RedirectGeneral   RedirectCategory = "general"
	RedirectSmalltalk RedirectCategory = "smalltalk"
	RedirectComplaint RedirectCategory = "complaint"
	RedirectPersonal  RedirectCategory = "personal"
	RedirectPolitics  RedirectCategory = "politics"
	RedirectHealth    RedirectCategory = "health"
	RedirectSports    RedirectCategory = "sports"
	RedirectWeather   RedirectCategory = "weather"
)

// RedirectTemplate is an acknowledge-and-steer-back phrase pair for one
// off-topic category.
type RedirectTemplate struct {
	ID              int64
	Category        RedirectCategory
	Acknowledgment  string
	RedirectDirect  string
	RedirectSoft    string
	TimesUsed       int
	TimesSuccessful int
	SuccessRate     float64
}

// TopicDefinition is one whitelisted conversation topic. Read-only at
// runtime; an utterance containing any of its keywords is on-topic.
type TopicDefinition struct {
	ID       int64
	Name     string
	Category string
	Keywords []string
	Priority int
	IsCore   bool
}

// FillerPhrase is a short interjection blended into responses so
// synthesized speech sounds less scripted.
type FillerPhrase struct {
	ID           int64
	Type         string // filler, transition, agreement, empathy
	Phrase       string
	Frequency    string // high, medium, low
	NaturalScore float64
}
