package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerock/drawmatch/internal/common"
	"github.com/ledgerock/drawmatch/internal/model"
	"github.com/ledgerock/drawmatch/internal/service"
)

// GetInvoice retrieves an invoice by id.
func (s *SQLiteStorage) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, invoiceSelect+` WHERE id = ?`, id)
	invoice, err := scanInvoice(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invoice %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	return invoice, nil
}

// SaveInvoice inserts or updates an invoice with its extracted data.
func (s *SQLiteStorage) SaveInvoice(ctx context.Context, invoice *model.Invoice) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateInvoice(invoice); err != nil {
		return err
	}

	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = time.Now()
	}

	keywords, err := json.Marshal(invoice.Extracted.Keywords)
	if err != nil {
		return fmt.Errorf("failed to encode keywords: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO invoices (
			id, draw_id, vendor_name, amount, context, keywords, trade,
			work_type, vendor_type, matched_line_id, matched_category,
			matched_nahb, match_method, match_confidence, was_corrected,
			flagged_for_review, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			vendor_name = excluded.vendor_name,
			amount = excluded.amount,
			context = excluded.context,
			keywords = excluded.keywords,
			trade = excluded.trade,
			work_type = excluded.work_type,
			vendor_type = excluded.vendor_type
	`, invoice.ID, invoice.DrawID, invoice.Extracted.VendorName,
		invoice.Extracted.Amount, nullString(invoice.Extracted.Context),
		string(keywords), nullString(invoice.Extracted.Trade),
		nullString(invoice.Extracted.WorkType), nullString(invoice.Extracted.VendorType),
		nullString(invoice.MatchedLineID), nullString(invoice.MatchedCategory),
		nullString(invoice.MatchedNAHB), nullString(string(invoice.MatchMethod)),
		invoice.MatchConfidence, invoice.WasCorrected, invoice.FlaggedForReview,
		invoice.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to save invoice: %w", err)
	}

	return nil
}

// GetMatchedInvoicesForDraw returns every invoice on the draw that has a
// resolved category match. Unmatched invoices are not included.
func (s *SQLiteStorage) GetMatchedInvoicesForDraw(ctx context.Context, drawID string) ([]model.Invoice, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(drawID, "drawID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, invoiceSelect+`
		WHERE draw_id = ? AND matched_category IS NOT NULL AND matched_line_id IS NOT NULL
		ORDER BY created_at, id
	`, drawID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matched invoices: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var invoices []model.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, *invoice)
	}

	return invoices, rows.Err()
}

// ApplyInvoiceMatch points an invoice at a draw line. Matching is 1:1 per
// draw cycle: the invoice's prior line and any other invoice holding the
// target line are cleared in the same transaction.
func (s *SQLiteStorage) ApplyInvoiceMatch(ctx context.Context, params service.ApplyMatchParams) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(params.InvoiceID, "invoiceID"); err != nil {
		return err
	}
	if err := validateString(params.DrawLineID, "drawLineID"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Release the line(s) this invoice previously held.
	_, err = tx.ExecContext(ctx, `
		UPDATE draw_lines SET matched_invoice_id = NULL WHERE matched_invoice_id = ?
	`, params.InvoiceID)
	if err != nil {
		return fmt.Errorf("failed to clear prior line match: %w", err)
	}

	// Unmatch any other invoice currently holding the target line.
	_, err = tx.ExecContext(ctx, `
		UPDATE invoices
		SET matched_line_id = NULL, matched_category = NULL, matched_nahb = NULL,
			match_method = NULL, match_confidence = 0
		WHERE matched_line_id = ? AND id != ?
	`, params.DrawLineID, params.InvoiceID)
	if err != nil {
		return fmt.Errorf("failed to release target line: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE invoices
		SET matched_line_id = ?, matched_category = ?, matched_nahb = ?,
			match_method = ?, match_confidence = ?, was_corrected = ?,
			flagged_for_review = ?, review_reason = NULL
		WHERE id = ?
	`, params.DrawLineID, params.BudgetCategory, nullString(params.NAHBCategory),
		string(params.Method), params.Confidence, params.Corrected,
		params.FlagForReview, params.InvoiceID)
	if err != nil {
		return fmt.Errorf("failed to update invoice match: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("invoice %s: %w", params.InvoiceID, common.ErrNotFound)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE draw_lines SET matched_invoice_id = ? WHERE id = ?
	`, params.InvoiceID, params.DrawLineID)
	if err != nil {
		return fmt.Errorf("failed to update draw line match: %w", err)
	}

	return tx.Commit()
}

// FlagInvoiceForReview marks an invoice unmatched and awaiting a human.
func (s *SQLiteStorage) FlagInvoiceForReview(ctx context.Context, invoiceID, reason string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(invoiceID, "invoiceID"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE invoices SET flagged_for_review = 1, review_reason = ? WHERE id = ?
	`, nullString(reason), invoiceID)
	if err != nil {
		return fmt.Errorf("failed to flag invoice: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("invoice %s: %w", invoiceID, common.ErrNotFound)
	}

	return nil
}

const invoiceSelect = `
	SELECT id, draw_id, vendor_name, amount, context, keywords, trade,
		work_type, vendor_type, matched_line_id, matched_category,
		matched_nahb, match_method, match_confidence, was_corrected,
		flagged_for_review, created_at
	FROM invoices`

// scanInvoice reads one invoice row via the given scan function.
func scanInvoice(scan func(...any) error) (*model.Invoice, error) {
	var invoice model.Invoice
	var context, keywords, trade, workType, vendorType sql.NullString
	var matchedLine, matchedCategory, matchedNAHB, matchMethod sql.NullString

	err := scan(&invoice.ID, &invoice.DrawID, &invoice.Extracted.VendorName,
		&invoice.Extracted.Amount, &context, &keywords, &trade, &workType,
		&vendorType, &matchedLine, &matchedCategory, &matchedNAHB,
		&matchMethod, &invoice.MatchConfidence, &invoice.WasCorrected,
		&invoice.FlaggedForReview, &invoice.CreatedAt)
	if err != nil {
		return nil, err
	}

	invoice.Extracted.Context = context.String
	invoice.Extracted.Trade = trade.String
	invoice.Extracted.WorkType = workType.String
	invoice.Extracted.VendorType = vendorType.String
	invoice.MatchedLineID = matchedLine.String
	invoice.MatchedCategory = matchedCategory.String
	invoice.MatchedNAHB = matchedNAHB.String
	invoice.MatchMethod = model.MatchMethod(matchMethod.String)

	if keywords.Valid && keywords.String != "" {
		if err := json.Unmarshal([]byte(keywords.String), &invoice.Extracted.Keywords); err != nil {
			return nil, fmt.Errorf("failed to decode keywords: %w", err)
		}
	}

	return &invoice, nil
}
