package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema: draws, draw lines, invoices",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS draws (
					id TEXT PRIMARY KEY,
					project_id TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'PENDING',
					funded_at DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_draws_status ON draws(status)`,

				`CREATE TABLE IF NOT EXISTS draw_lines (
					id TEXT PRIMARY KEY,
					draw_id TEXT NOT NULL,
					budget_category TEXT NOT NULL,
					nahb_category TEXT,
					amount_requested REAL NOT NULL,
					matched_invoice_id TEXT,
					FOREIGN KEY (draw_id) REFERENCES draws(id)
				)`,
				`CREATE INDEX idx_draw_lines_draw ON draw_lines(draw_id)`,

				`CREATE TABLE IF NOT EXISTS invoices (
					id TEXT PRIMARY KEY,
					draw_id TEXT NOT NULL,
					vendor_name TEXT NOT NULL,
					amount REAL NOT NULL,
					context TEXT,
					keywords TEXT,
					trade TEXT,
					work_type TEXT,
					vendor_type TEXT,
					matched_line_id TEXT,
					matched_category TEXT,
					matched_nahb TEXT,
					match_method TEXT,
					match_confidence REAL DEFAULT 0,
					was_corrected BOOLEAN DEFAULT 0,
					flagged_for_review BOOLEAN DEFAULT 0,
					review_reason TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (draw_id) REFERENCES draws(id)
				)`,
				`CREATE INDEX idx_invoices_draw ON invoices(draw_id)`,
				`CREATE INDEX idx_invoices_matched_line ON invoices(matched_line_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Training data: ground-truth records and vendor associations",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS training_records (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					invoice_id TEXT UNIQUE NOT NULL,
					draw_id TEXT NOT NULL,
					approved_at DATETIME NOT NULL,
					vendor_name TEXT NOT NULL,
					amount REAL NOT NULL,
					context TEXT,
					keywords TEXT,
					trade TEXT,
					work_type TEXT,
					budget_category TEXT NOT NULL,
					nahb_category TEXT,
					match_method TEXT NOT NULL,
					confidence REAL DEFAULT 0,
					was_corrected BOOLEAN DEFAULT 0
				)`,
				`CREATE INDEX idx_training_vendor ON training_records(vendor_name)`,
				`CREATE INDEX idx_training_trade ON training_records(trade)`,
				`CREATE INDEX idx_training_category ON training_records(budget_category)`,

				`CREATE TABLE IF NOT EXISTS vendor_categories (
					vendor_name TEXT NOT NULL,
					budget_category TEXT NOT NULL,
					match_count INTEGER NOT NULL DEFAULT 0,
					total_amount REAL NOT NULL DEFAULT 0,
					last_matched_at DATETIME,
					PRIMARY KEY (vendor_name, budget_category)
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Match decision audit trail",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS match_decisions (
					id TEXT PRIMARY KEY,
					invoice_id TEXT NOT NULL,
					decision_type TEXT NOT NULL,
					previous_line_id TEXT,
					new_line_id TEXT NOT NULL,
					new_category TEXT,
					candidates TEXT,
					reason TEXT,
					decided_by TEXT,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_match_decisions_invoice ON match_decisions(invoice_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
