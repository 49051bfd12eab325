// Package conversation implements the real-time conversation engine:
// topic and stage classification, response selection, off-topic
// redirection, and the per-turn state machine that drives a live call.
package conversation

import (
	"sort"
	"strings"

	"github.com/lososs/callagent/internal/domain"
	"github.com/lososs/callagent/internal/lexicon"
)

// shortUtteranceLimit is the length under which a continuity phrase
// ("hello", "can you hear me") makes an utterance on-topic unconditionally.
const shortUtteranceLimit = 30

// TopicClassifier decides whether an utterance is on-topic for the sales
// goal. Topics are loaded once at startup and read-only afterwards, so
// the classifier is safe for concurrent use.
type TopicClassifier struct {
	topics []*domain.TopicDefinition
}

// NewTopicClassifier builds a classifier over the given topics. Topics
// are matched in priority order, highest first.
func NewTopicClassifier(topics []*domain.TopicDefinition) *TopicClassifier {
	sorted := make([]*domain.TopicDefinition, len(topics))
	copy(sorted, topics)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	return &TopicClassifier{topics: sorted}
}

// IsOnTopic reports whether the utterance touches any whitelisted topic
// and returns the matched topic name. Absence of a match is a normal
// outcome, not an error: the classifier never fails.
func (c *TopicClassifier) IsOnTopic(utterance string) (bool, string) {
	text := strings.ToLower(strings.TrimSpace(utterance))
	if text == "" {
		return false, ""
	}

	// Short conversational-continuity utterances are call mechanics,
	// not topic drift.
	if len(text) < shortUtteranceLimit && lexicon.ContainsAny(text, lexicon.ContinuityPhrases) {
		return true, ""
	}

	for _, topic := range c.topics {
		for _, kw := range topic.Keywords {
			if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
				return true, topic.Name
			}
		}
	}
	return false, ""
}
