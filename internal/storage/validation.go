package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledgerock/drawmatch/internal/model"
)

// Validation errors.
var (
	ErrNilContext     = errors.New("context cannot be nil")
	ErrEmptyString    = errors.New("string parameter cannot be empty")
	ErrNilParameter   = errors.New("parameter cannot be nil")
	ErrInvalidInvoice = errors.New("invalid invoice")
	ErrInvalidRecord  = errors.New("invalid training record")
	ErrInvalidDraw    = errors.New("invalid draw")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateInvoice validates an invoice before it crosses the storage boundary.
func validateInvoice(inv *model.Invoice) error {
	if inv == nil {
		return fmt.Errorf("%w: invoice", ErrNilParameter)
	}
	if inv.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidInvoice)
	}
	if inv.DrawID == "" {
		return fmt.Errorf("%w: missing draw id", ErrInvalidInvoice)
	}
	if inv.Extracted.Amount < 0 {
		return fmt.Errorf("%w: negative amount", ErrInvalidInvoice)
	}
	return nil
}

// validateTrainingRecord validates a training record before insertion.
func validateTrainingRecord(record *model.TrainingRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if record.InvoiceID == "" {
		return fmt.Errorf("%w: missing invoice id", ErrInvalidRecord)
	}
	if record.DrawID == "" {
		return fmt.Errorf("%w: missing draw id", ErrInvalidRecord)
	}
	if record.BudgetCategory == "" {
		return fmt.Errorf("%w: missing budget category", ErrInvalidRecord)
	}
	if record.MatchMethod == "" {
		return fmt.Errorf("%w: missing match method", ErrInvalidRecord)
	}
	return nil
}

// validateDraw validates a draw before saving.
func validateDraw(draw *model.Draw) error {
	if draw == nil {
		return fmt.Errorf("%w: draw", ErrNilParameter)
	}
	if draw.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidDraw)
	}
	return nil
}
