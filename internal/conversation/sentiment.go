package conversation

import (
	"strings"

	"github.com/lososs/callagent/internal/domain"
	"github.com/lososs/callagent/internal/lexicon"
)

// DetectSentiment classifies an utterance by counting hits from fixed
// positive and negative word lists. A strictly greater count wins; a tie
// is neutral. Deliberately crude: sentiment only biases tone selection,
// it never drives control flow.
func DetectSentiment(utterance string) domain.Sentiment {
	text := strings.ToLower(utterance)

	pos := 0
	for _, w := range lexicon.PositiveWords {
		if strings.Contains(text, w) {
			pos++
		}
	}
	neg := 0
	for _, w := range lexicon.NegativeWords {
		if strings.Contains(text, w) {
			neg++
		}
	}

	switch {
	case pos > neg:
		return domain.SentimentPositive
	case neg > pos:
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}
