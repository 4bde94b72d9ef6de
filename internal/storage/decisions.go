package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ledgerock/drawmatch/internal/model"
)

// SaveMatchDecision appends a match decision to the audit trail. Decisions
// are never updated or deleted.
func (s *SQLiteStorage) SaveMatchDecision(ctx context.Context, decision *model.MatchDecision) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if decision == nil {
		return fmt.Errorf("%w: decision", ErrNilParameter)
	}
	if err := validateString(decision.ID, "decision.ID"); err != nil {
		return err
	}
	if err := validateString(decision.InvoiceID, "decision.InvoiceID"); err != nil {
		return err
	}

	candidates, err := json.Marshal(decision.Candidates)
	if err != nil {
		return fmt.Errorf("failed to encode candidate set: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO match_decisions (
			id, invoice_id, decision_type, previous_line_id, new_line_id,
			new_category, candidates, reason, decided_by, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, decision.ID, decision.InvoiceID, string(decision.DecisionType),
		nullString(decision.PreviousLineID), decision.NewLineID,
		nullString(decision.NewCategory), string(candidates),
		nullString(decision.Reason), nullString(decision.DecidedBy),
		decision.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to save match decision: %w", err)
	}

	return nil
}

// GetMatchDecisions returns the decision history for an invoice, newest first.
func (s *SQLiteStorage) GetMatchDecisions(ctx context.Context, invoiceID string) ([]model.MatchDecision, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(invoiceID, "invoiceID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, invoice_id, decision_type, previous_line_id, new_line_id,
			new_category, candidates, reason, decided_by, created_at
		FROM match_decisions
		WHERE invoice_id = ?
		ORDER BY created_at DESC, id
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query match decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var decisions []model.MatchDecision
	for rows.Next() {
		var decision model.MatchDecision
		var decisionType string
		var previousLine, newCategory, candidates, reason, decidedBy sql.NullString

		err := rows.Scan(&decision.ID, &decision.InvoiceID, &decisionType,
			&previousLine, &decision.NewLineID, &newCategory, &candidates,
			&reason, &decidedBy, &decision.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match decision: %w", err)
		}

		decision.DecisionType = model.DecisionType(decisionType)
		decision.PreviousLineID = previousLine.String
		decision.NewCategory = newCategory.String
		decision.Reason = reason.String
		decision.DecidedBy = decidedBy.String

		if candidates.Valid && candidates.String != "" {
			if err := json.Unmarshal([]byte(candidates.String), &decision.Candidates); err != nil {
				return nil, fmt.Errorf("failed to decode candidate set: %w", err)
			}
		}

		decisions = append(decisions, decision)
	}

	return decisions, rows.Err()
}
