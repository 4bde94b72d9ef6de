// Package training converts funded-draw outcomes into permanent training
// data and exposes the aggregate statistics that feed future scoring.
package training

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgerock/drawmatch/internal/common"
	"github.com/ledgerock/drawmatch/internal/model"
	"github.com/ledgerock/drawmatch/internal/service"
	"github.com/ledgerock/drawmatch/internal/vendor"
)

// Capturer records ground-truth matches when a draw is funded. Callers treat
// capture as best-effort: a failure here must never abort the funding
// operation that triggered it.
type Capturer struct {
	storage service.Storage
}

// NewCapturer creates a training capturer over the given storage.
func NewCapturer(storage service.Storage) *Capturer {
	return &Capturer{storage: storage}
}

// CaptureForDraw converts every matched invoice on a draw into a training
// record and updates vendor associations. Unmatched invoices are skipped.
// Duplicate records (from re-running capture) are detected and skipped, so
// the operation is idempotent. Per-invoice failures are collected in the
// result; they never abort the rest of the batch.
func (c *Capturer) CaptureForDraw(ctx context.Context, drawID string) (*service.CaptureResult, error) {
	draw, err := c.storage.GetDraw(ctx, drawID)
	if err != nil {
		return nil, fmt.Errorf("failed to load draw %s: %w", drawID, err)
	}

	approvedAt := draw.FundedAt
	if approvedAt.IsZero() {
		approvedAt = time.Now()
	}

	invoices, err := c.storage.GetMatchedInvoicesForDraw(ctx, drawID)
	if err != nil {
		return nil, fmt.Errorf("failed to load matched invoices for draw %s: %w", drawID, err)
	}

	result := &service.CaptureResult{}

	for i := range invoices {
		inv := &invoices[i]
		result.InvoicesProcessed++

		record := buildRecord(inv, drawID, approvedAt)

		created, err := c.storage.InsertTrainingRecord(ctx, record)
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("invoice %s: %v", inv.ID, err))
			continue
		}

		if !created {
			// Already captured on a previous run. Normal, not a failure.
			slog.Debug("Training record already exists, skipping",
				"invoice_id", inv.ID, "draw_id", drawID)
			continue
		}
		result.TrainingRecordsCreated++

		err = common.WithRetry(ctx, func() error {
			return c.storage.UpsertVendorAssociation(ctx,
				record.VendorName, record.BudgetCategory, record.Amount, approvedAt)
		}, service.RetryOptions{MaxAttempts: 3})
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("invoice %s: vendor association update failed: %v", inv.ID, err))
			continue
		}
		result.VendorAssociationsUpdated++
	}

	slog.Info("Training capture complete",
		"draw_id", drawID,
		"invoices_processed", result.InvoicesProcessed,
		"records_created", result.TrainingRecordsCreated,
		"associations_updated", result.VendorAssociationsUpdated,
		"errors", len(result.Errors))

	return result, nil
}

// buildRecord derives a training record from a matched invoice. A corrected
// match always records the manual method, since a human supplied the ground
// truth.
func buildRecord(inv *model.Invoice, drawID string, approvedAt time.Time) *model.TrainingRecord {
	method := inv.MatchMethod
	if inv.WasCorrected {
		method = model.MatchMethodManual
	}
	if method == "" {
		method = model.MatchMethodManual
	}

	return &model.TrainingRecord{
		InvoiceID:      inv.ID,
		DrawID:         drawID,
		ApprovedAt:     approvedAt,
		VendorName:     vendor.Normalize(inv.Extracted.VendorName),
		Amount:         inv.Extracted.Amount,
		Context:        inv.Extracted.Context,
		Keywords:       inv.Extracted.Keywords,
		Trade:          inv.Extracted.Trade,
		WorkType:       inv.Extracted.WorkType,
		BudgetCategory: inv.MatchedCategory,
		NAHBCategory:   inv.MatchedNAHB,
		MatchMethod:    method,
		Confidence:     inv.MatchConfidence,
		WasCorrected:   inv.WasCorrected,
	}
}
