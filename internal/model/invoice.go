// Package model defines the core domain models used throughout the application.
package model

import "time"

// MatchMethod indicates how an invoice was matched to a draw line.
type MatchMethod string

// Match method constants.
const (
	MatchMethodAuto   MatchMethod = "auto"
	MatchMethodAI     MatchMethod = "ai"
	MatchMethodManual MatchMethod = "manual"
)

// ExtractedInvoiceData is the output of the upstream extraction step for one
// invoice. It is immutable once produced.
type ExtractedInvoiceData struct {
	VendorName string
	Context    string
	Trade      string
	WorkType   string
	VendorType string
	Keywords   []string
	Amount     float64
}

// Invoice represents an invoice submitted against a draw, together with its
// current match state. An empty MatchedLineID means the invoice is unmatched.
type Invoice struct {
	CreatedAt       time.Time
	ID              string
	DrawID          string
	MatchedLineID   string
	MatchedCategory string
	MatchedNAHB     string
	MatchMethod     MatchMethod
	Extracted       ExtractedInvoiceData
	MatchConfidence float64
	WasCorrected    bool
	FlaggedForReview bool
}

// IsMatched reports whether the invoice has a resolved category match.
func (i *Invoice) IsMatched() bool {
	return i.MatchedLineID != "" && i.MatchedCategory != ""
}
