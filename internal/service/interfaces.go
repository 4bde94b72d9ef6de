// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/ledgerock/drawmatch/internal/model"
)

// ApplyMatchParams describes a match being applied to an invoice. Applying a
// match clears any prior line held by the same invoice.
type ApplyMatchParams struct {
	InvoiceID      string
	DrawLineID     string
	BudgetCategory string
	NAHBCategory   string
	Method         model.MatchMethod
	Confidence     float64
	FlagForReview  bool
	Corrected      bool
}

// PatternLookup is the read-side view of accumulated training data consumed
// by candidate scoring. All operations tolerate empty results.
type PatternLookup interface {
	GetVendorHistory(ctx context.Context, vendorName string) (map[string]model.VendorCategoryStat, error)
	GetTradePatterns(ctx context.Context, trade string) (map[string]int, error)
	GetKeywordPatterns(ctx context.Context, keywords []string, budgetCategory string) (int, error)
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	PatternLookup

	// Draw operations
	GetDraw(ctx context.Context, id string) (*model.Draw, error)
	SaveDraw(ctx context.Context, draw *model.Draw) error
	MarkDrawFunded(ctx context.Context, id string, fundedAt time.Time) error
	GetFundedDrawIDs(ctx context.Context) ([]string, error)

	// Draw line operations
	GetDrawLine(ctx context.Context, id string) (*model.DrawLine, error)
	GetOpenDrawLines(ctx context.Context, drawID string) ([]model.DrawLine, error)
	SaveDrawLines(ctx context.Context, lines []model.DrawLine) error

	// Invoice operations
	GetInvoice(ctx context.Context, id string) (*model.Invoice, error)
	SaveInvoice(ctx context.Context, invoice *model.Invoice) error
	GetMatchedInvoicesForDraw(ctx context.Context, drawID string) ([]model.Invoice, error)
	ApplyInvoiceMatch(ctx context.Context, params ApplyMatchParams) error
	FlagInvoiceForReview(ctx context.Context, invoiceID, reason string) error

	// Training data operations
	InsertTrainingRecord(ctx context.Context, record *model.TrainingRecord) (bool, error)
	UpsertVendorAssociation(ctx context.Context, vendorName, budgetCategory string, amount float64, matchedAt time.Time) error
	GetVendorAssociations(ctx context.Context, vendorName string) ([]model.VendorAssociation, error)

	// Match decision operations
	SaveMatchDecision(ctx context.Context, decision *model.MatchDecision) error
	GetMatchDecisions(ctx context.Context, invoiceID string) ([]model.MatchDecision, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// CaptureResult reports what a training capture run accomplished. Per-invoice
// failures are collected rather than aborting the batch.
type CaptureResult struct {
	Errors                    []string
	InvoicesProcessed         int
	TrainingRecordsCreated    int
	VendorAssociationsUpdated int
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
