package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Analysis is the structured outcome of a finished call.
type Analysis struct {
	Outcome           string `json:"outcome"`
	SalesScore        int    `json:"sales_score"`
	GotEmail          bool   `json:"got_email"`
	GotPhone          bool   `json:"got_phone"`
	ScheduledCallback bool   `json:"scheduled_callback"`
	ObjectionsCount   int    `json:"objections_count"`
	PositiveSignals   int    `json:"positive_signals"`
	Summary           string `json:"summary"`
	Recommendations   string `json:"recommendations"`
	WhatWorked        string `json:"what_worked"`
	WhatFailed        string `json:"what_failed"`
}

var validOutcomes = map[string]bool{
	"success":     true,
	"callback":    true,
	"no_interest": true,
	"no_answer":   true,
}

// AnalyzeCall scores a finished call from its transcript. The model is asked
// for a JSON object; malformed or out-of-range fields fail the call so the
// reporter can fall back to heuristic scoring.
func (c *Client) AnalyzeCall(ctx context.Context, transcript string) (*Analysis, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, fmt.Errorf("empty transcript")
	}

	prompt := buildAnalysisPrompt(transcript)

	content, err := c.complete(ctx, prompt, true)
	if err != nil {
		return nil, err
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(content), &analysis); err != nil {
		return nil, fmt.Errorf("parsing analysis: %w", err)
	}

	if !validOutcomes[analysis.Outcome] {
		return nil, fmt.Errorf("unexpected outcome %q", analysis.Outcome)
	}
	if analysis.SalesScore < 0 {
		analysis.SalesScore = 0
	}
	if analysis.SalesScore > 100 {
		analysis.SalesScore = 100
	}
	if analysis.ObjectionsCount < 0 {
		analysis.ObjectionsCount = 0
	}
	if analysis.PositiveSignals < 0 {
		analysis.PositiveSignals = 0
	}

	return &analysis, nil
}

func buildAnalysisPrompt(transcript string) string {
	return fmt.Sprintf(`Analyze this sales call and evaluate it.

TRANSCRIPT:
%s

Respond with a single JSON object, no other text:
{
    "outcome": "success/callback/no_interest/no_answer",
    "sales_score": 0-100,
    "got_email": true/false,
    "got_phone": true/false,
    "scheduled_callback": true/false,
    "objections_count": 0,
    "positive_signals": 0,
    "summary": "Short summary of what happened",
    "recommendations": "What to improve next time",
    "what_worked": "What worked well",
    "what_failed": "What failed or could have gone better"
}

RULES:
- "success" = got contact details OR scheduled a meeting
- "callback" = customer wants to be contacted later
- "no_interest" = clear refusal
- sales_score: 0-100 (100 = perfect sale)
- objections_count = how many times the customer objected
- positive_signals = positive phrases ("yes", "interesting", "send it over")`, transcript)
}
