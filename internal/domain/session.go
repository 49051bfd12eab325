// Package domain contains the core business entities and interfaces.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Stage represents a phase of the sales funnel a call is in.
type Stage string

const (
	StageIntro      Stage = "intro"
	StageDiscovery  Stage = "discovery"
	StageValue      Stage = "value"
	StageObjection  Stage = "objection"
	StageClosing    Stage = "closing"
	StageTerminated Stage = "terminated"
)

// Valid reports whether s is one of the known funnel stages.
func (s Stage) Valid() bool {
	switch s {
	case StageIntro, StageDiscovery, StageValue, StageObjection, StageClosing, StageTerminated:
		return true
	}
	return false
}

// Sentiment is the coarse mood detected from a caller utterance.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Speaker identifies who produced a conversation turn.
type Speaker string

const (
	SpeakerAgent  Speaker = "agent"
	SpeakerCaller Speaker = "caller"
)

// Turn is a single entry in a call's conversation history.
type Turn struct {
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// EndReason explains why a session reached the terminated stage.
type EndReason string

const (
	EndReasonHardRejection EndReason = "hard_rejection"
	EndReasonGoodbye       EndReason = "goodbye"
	EndReasonOffTopicLimit EndReason = "off_topic_limit"
	EndReasonTimeLimit     EndReason = "time_limit"
	EndReasonNoInput       EndReason = "no_input"
	EndReasonHangup        EndReason = "hangup"
)

// CallDirection distinguishes inbound reception from outbound cold calls.
type CallDirection string

const (
	DirectionInbound  CallDirection = "inbound"
	DirectionOutbound CallDirection = "outbound"
)

// CallSession holds the mutable per-call conversation state. Exactly one
// session exists per provider call ID at any time; a new call reusing an
// ID replaces the stale session rather than inheriting its state.
//
// Turns for one call arrive strictly sequentially, so the session itself
// needs no locking; the store that hands sessions out does.
type CallSession struct {
	ID             uuid.UUID
	ProviderCallID string
	Direction      CallDirection
	CallerNumber   string

	Stage        Stage
	SubCategory  string
	CustomerName string
	Company      string
	Sentiment    Sentiment

	OffTopicCount    int
	RetryCount       int
	MeetingScheduled bool
	EndReason        EndReason
	StageAtEnd       Stage

	History        []Turn
	UsedResponses  []int64
	LastResponseID int64

	Campaign  string
	StartedAt time.Time
}

// NewCallSession creates a fresh session at the intro stage.
func NewCallSession(providerCallID string, direction CallDirection, callerNumber string, now time.Time) *CallSession {
	return &CallSession{
		ID:             uuid.New(),
		ProviderCallID: providerCallID,
		Direction:      direction,
		CallerNumber:   callerNumber,
		Stage:          StageIntro,
		Sentiment:      SentimentNeutral,
		StartedAt:      now,
	}
}

// AppendTurn records a turn at the end of the conversation history.
// History is append-only and strictly ordered.
func (s *CallSession) AppendTurn(speaker Speaker, text string, at time.Time) {
	s.History = append(s.History, Turn{Speaker: speaker, Text: text, At: at})
}

// RecordResponse remembers which template produced the latest agent reply,
// for anti-repetition in later selections.
func (s *CallSession) RecordResponse(templateID int64) {
	s.LastResponseID = templateID
	if templateID > 0 {
		s.UsedResponses = append(s.UsedResponses, templateID)
	}
}

// RecentResponseIDs returns the template IDs of the last n selections.
func (s *CallSession) RecentResponseIDs(n int) []int64 {
	if len(s.UsedResponses) <= n {
		return s.UsedResponses
	}
	return s.UsedResponses[len(s.UsedResponses)-n:]
}

// Terminated reports whether the session has reached its final stage.
func (s *CallSession) Terminated() bool {
	return s.Stage == StageTerminated
}

// Terminate moves the session into the terminated stage with a reason.
// The first reason wins; later calls keep it. The stage the call was in
// when it ended survives in StageAtEnd.
func (s *CallSession) Terminate(reason EndReason) {
	if s.Stage != StageTerminated {
		s.StageAtEnd = s.Stage
		s.Stage = StageTerminated
		s.EndReason = reason
	}
}

// TurnCount returns the number of caller turns in the history.
func (s *CallSession) TurnCount() int {
	n := 0
	for _, t := range s.History {
		if t.Speaker == SpeakerCaller {
			n++
		}
	}
	return n
}

// Transcript renders the history as plain text, one line per turn.
func (s *CallSession) Transcript() string {
	var b strings.Builder
	for _, t := range s.History {
		b.WriteString(string(t.Speaker))
		b.WriteString(": ")
		b.WriteString(t.Text)
		b.WriteString("\n")
	}
	return b.String()
}
