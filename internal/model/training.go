package model

import "time"

// TrainingRecord is a persisted ground-truth example created when a funded
// draw confirms an invoice match. Records are write-once per invoice and form
// an append-only audit trail.
type TrainingRecord struct {
	ApprovedAt     time.Time
	InvoiceID      string
	DrawID         string
	VendorName     string
	Context        string
	Trade          string
	WorkType       string
	BudgetCategory string
	NAHBCategory   string
	MatchMethod    MatchMethod
	Keywords       []string
	ID             int64
	Amount         float64
	Confidence     float64
	WasCorrected   bool
}

// VendorAssociation aggregates historical matches for one normalized vendor
// name and budget category pair.
type VendorAssociation struct {
	LastMatchedAt  time.Time
	VendorName     string
	BudgetCategory string
	MatchCount     int
	TotalAmount    float64
}

// VendorCategoryStat is the read-side summary consumed by candidate scoring.
type VendorCategoryStat struct {
	MatchCount  int
	TotalAmount float64
}
