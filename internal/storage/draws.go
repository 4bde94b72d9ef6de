package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerock/drawmatch/internal/common"
	"github.com/ledgerock/drawmatch/internal/model"
)

// GetDraw retrieves a draw by id.
func (s *SQLiteStorage) GetDraw(ctx context.Context, id string) (*model.Draw, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var draw model.Draw
	var fundedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, status, funded_at, created_at
		FROM draws
		WHERE id = ?
	`, id).Scan(&draw.ID, &draw.ProjectID, &draw.Status, &fundedAt, &draw.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("draw %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draw: %w", err)
	}

	if fundedAt.Valid {
		draw.FundedAt = fundedAt.Time
	}

	return &draw, nil
}

// SaveDraw inserts or updates a draw.
func (s *SQLiteStorage) SaveDraw(ctx context.Context, draw *model.Draw) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateDraw(draw); err != nil {
		return err
	}

	if draw.Status == "" {
		draw.Status = model.DrawStatusPending
	}
	if draw.CreatedAt.IsZero() {
		draw.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO draws (id, project_id, status, funded_at, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			status = excluded.status,
			funded_at = excluded.funded_at
	`, draw.ID, draw.ProjectID, draw.Status, nullTime(draw.FundedAt), draw.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to save draw: %w", err)
	}

	return nil
}

// MarkDrawFunded transitions a draw to funded status.
func (s *SQLiteStorage) MarkDrawFunded(ctx context.Context, id string, fundedAt time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE draws SET status = ?, funded_at = ? WHERE id = ?
	`, model.DrawStatusFunded, fundedAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark draw funded: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("draw %s: %w", id, common.ErrNotFound)
	}

	return nil
}

// GetFundedDrawIDs returns the ids of all funded draws, oldest first.
func (s *SQLiteStorage) GetFundedDrawIDs(ctx context.Context) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM draws WHERE status = ? ORDER BY funded_at, id
	`, model.DrawStatusFunded)
	if err != nil {
		return nil, fmt.Errorf("failed to query funded draws: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan draw id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// GetDrawLine retrieves a single draw line by id.
func (s *SQLiteStorage) GetDrawLine(ctx context.Context, id string) (*model.DrawLine, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	line, err := scanDrawLine(s.db.QueryRowContext(ctx, `
		SELECT id, draw_id, budget_category, nahb_category, amount_requested, matched_invoice_id
		FROM draw_lines
		WHERE id = ?
	`, id))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("draw line %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draw line: %w", err)
	}

	return line, nil
}

// GetOpenDrawLines returns every line on a draw, in insertion order.
func (s *SQLiteStorage) GetOpenDrawLines(ctx context.Context, drawID string) ([]model.DrawLine, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(drawID, "drawID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, draw_id, budget_category, nahb_category, amount_requested, matched_invoice_id
		FROM draw_lines
		WHERE draw_id = ?
		ORDER BY rowid
	`, drawID)
	if err != nil {
		return nil, fmt.Errorf("failed to query draw lines: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var lines []model.DrawLine
	for rows.Next() {
		var line model.DrawLine
		var nahb, matchedInvoice sql.NullString
		err := rows.Scan(&line.ID, &line.DrawID, &line.BudgetCategory, &nahb,
			&line.AmountRequested, &matchedInvoice)
		if err != nil {
			return nil, fmt.Errorf("failed to scan draw line: %w", err)
		}
		line.NAHBCategory = nahb.String
		line.MatchedInvoiceID = matchedInvoice.String
		lines = append(lines, line)
	}

	return lines, rows.Err()
}

// SaveDrawLines inserts or updates draw lines.
func (s *SQLiteStorage) SaveDrawLines(ctx context.Context, lines []model.DrawLine) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, line := range lines {
		if line.ID == "" || line.DrawID == "" {
			return fmt.Errorf("%w: draw line missing id or draw id", ErrNilParameter)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO draw_lines (id, draw_id, budget_category, nahb_category, amount_requested, matched_invoice_id)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				budget_category = excluded.budget_category,
				nahb_category = excluded.nahb_category,
				amount_requested = excluded.amount_requested
		`, line.ID, line.DrawID, line.BudgetCategory, nullString(line.NAHBCategory),
			line.AmountRequested, nullString(line.MatchedInvoiceID))
		if err != nil {
			return fmt.Errorf("failed to save draw line %s: %w", line.ID, err)
		}
	}

	return tx.Commit()
}

func scanDrawLine(row *sql.Row) (*model.DrawLine, error) {
	var line model.DrawLine
	var nahb, matchedInvoice sql.NullString

	err := row.Scan(&line.ID, &line.DrawID, &line.BudgetCategory, &nahb,
		&line.AmountRequested, &matchedInvoice)
	if err != nil {
		return nil, err
	}

	line.NAHBCategory = nahb.String
	line.MatchedInvoiceID = matchedInvoice.String
	return &line, nil
}
