package conversation

import (
	"strings"

	"github.com/lososs/callagent/internal/domain"
	"github.com/lososs/callagent/internal/lexicon"
)

// Sub-categories produced by the stage classifier.
const (
	SubDirectClose  = "direct_close"
	SubSoftClose    = "soft_close"
	SubWebCheck     = "web_check"
	SubHaveWeb      = "have_web"
	SubNoWeb        = "no_web"
	SubSEOBenefit   = "seo_benefit"
	SubROIBenefit   = "roi_benefit"
	SubCompetitor   = "competitor_advantage"
	SubValueFirst   = "value_first"
)

// ClassifyStage maps an utterance plus the current stage to the next
// stage and sub-category. The cascade is evaluated in a fixed priority
// order that encodes business priority, not conversation chronology:
// an utterance containing both an objection and a scheduling word is a
// close, never a downgraded objection.
//
// Hard rejections are screened earlier by the engine, so the cascade
// starts at closing intent.
func ClassifyStage(utterance string, current domain.Stage) (domain.Stage, string) {
	text := strings.ToLower(utterance)

	// 1. Closing intent: explicit scheduling words.
	if lexicon.ContainsAny(text, lexicon.ClosingIntent) {
		return domain.StageClosing, SubDirectClose
	}

	// 2. Known objection families, in lexicon order.
	for _, fam := range lexicon.ObjectionFamilies {
		if lexicon.ContainsAny(text, fam.Phrases) {
			return domain.StageObjection, fam.SubCategory
		}
	}

	// 3. Curiosity: the caller asks how or why, so pitch value.
	if lexicon.ContainsAny(text, lexicon.ValueCuriosity) {
		switch {
		case lexicon.ContainsAny(text, lexicon.ValueSEO):
			return domain.StageValue, SubSEOBenefit
		case lexicon.ContainsAny(text, lexicon.ValueROI):
			return domain.StageValue, SubROIBenefit
		case lexicon.ContainsAny(text, lexicon.ValueCompetitor):
			return domain.StageValue, SubCompetitor
		default:
			return domain.StageValue, SubSEOBenefit
		}
	}

	// 4. Discovery answers about the asset.
	if lexicon.ContainsAny(text, lexicon.NoAsset) {
		return domain.StageDiscovery, SubNoWeb
	}
	if lexicon.ContainsAny(text, lexicon.HasAsset) {
		return domain.StageDiscovery, SubHaveWeb
	}

	// 5. Nothing matched: advance along the funnel from where we are.
	return progress(current)
}

// progress is the default stage progression when the utterance carries no
// explicit signal.
func progress(current domain.Stage) (domain.Stage, string) {
	switch current {
	case domain.StageIntro:
		return domain.StageDiscovery, SubWebCheck
	case domain.StageDiscovery:
		return domain.StageValue, SubSEOBenefit
	case domain.StageValue:
		return domain.StageClosing, SubDirectClose
	default:
		return current, ""
	}
}

// IsHardRejection reports whether the utterance contains an explicit
// do-not-call phrase.
func IsHardRejection(utterance string) bool {
	return lexicon.ContainsAny(strings.ToLower(utterance), lexicon.HardRejections)
}

// ContainsGoodbye reports whether a generated response reads as a
// farewell, which means the call should end after it is played.
func ContainsGoodbye(response string) bool {
	return lexicon.ContainsAny(strings.ToLower(response), lexicon.GoodbyePhrases)
}
