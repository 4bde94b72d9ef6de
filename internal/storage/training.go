package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ledgerock/drawmatch/internal/common"
	"github.com/ledgerock/drawmatch/internal/model"
	"github.com/ledgerock/drawmatch/internal/vendor"
)

// InsertTrainingRecord inserts a ground-truth training record. Records are
// write-once per invoice: a duplicate insert is detected via the uniqueness
// constraint and reported as created=false, not as an error.
func (s *SQLiteStorage) InsertTrainingRecord(ctx context.Context, record *model.TrainingRecord) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateTrainingRecord(record); err != nil {
		return false, err
	}

	keywords, err := json.Marshal(record.Keywords)
	if err != nil {
		return false, fmt.Errorf("failed to encode keywords: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO training_records (
			invoice_id, draw_id, approved_at, vendor_name, amount, context,
			keywords, trade, work_type, budget_category, nahb_category,
			match_method, confidence, was_corrected
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.InvoiceID, record.DrawID, record.ApprovedAt,
		vendor.Normalize(record.VendorName), record.Amount,
		nullString(record.Context), string(keywords), nullString(record.Trade),
		nullString(record.WorkType), record.BudgetCategory,
		nullString(record.NAHBCategory), string(record.MatchMethod),
		record.Confidence, record.WasCorrected)

	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert training record: %w", err)
	}

	if id, idErr := result.LastInsertId(); idErr == nil {
		record.ID = id
	}

	return true, nil
}

// UpsertVendorAssociation increments the aggregated statistics for one
// vendor/category pair. The protocol is an optimistic insert followed by a
// relative update on conflict, so concurrent captures never lose increments.
func (s *SQLiteStorage) UpsertVendorAssociation(ctx context.Context, vendorName, budgetCategory string, amount float64, matchedAt time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(vendorName, "vendorName"); err != nil {
		return err
	}
	if err := validateString(budgetCategory, "budgetCategory"); err != nil {
		return err
	}

	key := vendor.Normalize(vendorName)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vendor_categories (vendor_name, budget_category, match_count, total_amount, last_matched_at)
		VALUES (?, ?, 1, ?, ?)
	`, key, budgetCategory, amount, matchedAt)
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return fmt.Errorf("failed to insert vendor association: %w", err)
	}

	// Row already exists: apply a relative increment. The arithmetic runs
	// inside the statement, so a concurrent update cannot be lost.
	result, err := s.db.ExecContext(ctx, `
		UPDATE vendor_categories
		SET match_count = match_count + 1,
			total_amount = total_amount + ?,
			last_matched_at = ?
		WHERE vendor_name = ? AND budget_category = ?
	`, amount, matchedAt, key, budgetCategory)
	if err != nil {
		return fmt.Errorf("failed to update vendor association: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		// The row vanished between insert and update. Retryable.
		return fmt.Errorf("vendor association %s/%s: %w", key, budgetCategory, common.ErrConflict)
	}

	return nil
}

// GetVendorAssociations returns all aggregated associations for a vendor.
func (s *SQLiteStorage) GetVendorAssociations(ctx context.Context, vendorName string) ([]model.VendorAssociation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(vendorName, "vendorName"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT vendor_name, budget_category, match_count, total_amount, last_matched_at
		FROM vendor_categories
		WHERE vendor_name = ?
		ORDER BY match_count DESC, budget_category
	`, vendor.Normalize(vendorName))
	if err != nil {
		return nil, fmt.Errorf("failed to query vendor associations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var associations []model.VendorAssociation
	for rows.Next() {
		var assoc model.VendorAssociation
		var lastMatched sql.NullTime
		err := rows.Scan(&assoc.VendorName, &assoc.BudgetCategory,
			&assoc.MatchCount, &assoc.TotalAmount, &lastMatched)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vendor association: %w", err)
		}
		assoc.LastMatchedAt = lastMatched.Time
		associations = append(associations, assoc)
	}

	return associations, rows.Err()
}

// GetVendorHistory returns per-category match statistics for a vendor.
// Unknown vendors yield an empty map.
func (s *SQLiteStorage) GetVendorHistory(ctx context.Context, vendorName string) (map[string]model.VendorCategoryStat, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(vendorName) == "" {
		return map[string]model.VendorCategoryStat{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT budget_category, match_count, total_amount
		FROM vendor_categories
		WHERE vendor_name = ?
	`, vendor.Normalize(vendorName))
	if err != nil {
		return nil, fmt.Errorf("failed to query vendor history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	history := make(map[string]model.VendorCategoryStat)
	for rows.Next() {
		var category string
		var stat model.VendorCategoryStat
		if err := rows.Scan(&category, &stat.MatchCount, &stat.TotalAmount); err != nil {
			return nil, fmt.Errorf("failed to scan vendor history: %w", err)
		}
		history[category] = stat
	}

	return history, rows.Err()
}

// GetTradePatterns returns how often each budget category appears in
// training records carrying the given trade signal.
func (s *SQLiteStorage) GetTradePatterns(ctx context.Context, trade string) (map[string]int, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(trade) == "" {
		return map[string]int{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT budget_category, COUNT(*)
		FROM training_records
		WHERE trade = ? COLLATE NOCASE
		GROUP BY budget_category
	`, trade)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	patterns := make(map[string]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan trade pattern: %w", err)
		}
		patterns[category] = count
	}

	return patterns, rows.Err()
}

// GetKeywordPatterns counts past training records for a category whose
// stored keyword set intersects the given keywords, case-insensitive.
// Keyword sets are small JSON arrays, so the intersection runs in Go.
func (s *SQLiteStorage) GetKeywordPatterns(ctx context.Context, keywords []string, budgetCategory string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if len(keywords) == 0 || strings.TrimSpace(budgetCategory) == "" {
		return 0, nil
	}

	wanted := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		wanted[strings.ToLower(strings.TrimSpace(kw))] = true
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT keywords
		FROM training_records
		WHERE budget_category = ? AND keywords IS NOT NULL
	`, budgetCategory)
	if err != nil {
		return 0, fmt.Errorf("failed to query keyword patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	overlap := 0
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return 0, fmt.Errorf("failed to scan keyword pattern: %w", err)
		}

		var stored []string
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			continue
		}
		for _, kw := range stored {
			if wanted[strings.ToLower(strings.TrimSpace(kw))] {
				overlap++
				break
			}
		}
	}

	return overlap, rows.Err()
}
