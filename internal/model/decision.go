package model

import "time"

// DecisionType indicates why a match decision record was written.
type DecisionType string

// Decision type constants.
const (
	DecisionManualOverride DecisionType = "manual_override"
)

// MatchDecision is an append-only record of a human overriding a previous
// match. Decisions are never deleted.
type MatchDecision struct {
	CreatedAt      time.Time
	ID             string
	InvoiceID      string
	PreviousLineID string
	NewLineID      string
	NewCategory    string
	Reason         string
	DecidedBy      string
	DecisionType   DecisionType
	Candidates     []MatchCandidate
}
