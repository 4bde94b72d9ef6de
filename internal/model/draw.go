package model

import "time"

// DrawStatus tracks a draw request through its funding lifecycle.
type DrawStatus string

// Draw status constants.
const (
	DrawStatusPending DrawStatus = "PENDING"
	DrawStatusStaged  DrawStatus = "STAGED"
	DrawStatusFunded  DrawStatus = "FUNDED"
)

// Draw is a builder's request to withdraw funds against a project budget.
type Draw struct {
	FundedAt  time.Time
	CreatedAt time.Time
	ID        string
	ProjectID string
	Status    DrawStatus
}

// DrawLine is one categorized line item on a draw. A line holds at most one
// matched invoice at a time.
type DrawLine struct {
	ID               string
	DrawID           string
	BudgetCategory   string
	NAHBCategory     string
	MatchedInvoiceID string
	AmountRequested  float64
}
