// Package testutil provides test helpers for setting up isolated in-memory
// databases and seeding domain fixtures.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/ledgerock/drawmatch/internal/model"
	"github.com/ledgerock/drawmatch/internal/storage"
)

// SetupTestDB creates a migrated in-memory SQLite database. Cleanup is
// registered automatically.
func SetupTestDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return store
}

// SeedDraw saves a pending draw with the given lines.
func SeedDraw(t *testing.T, store *storage.SQLiteStorage, drawID string, lines []model.DrawLine) {
	t.Helper()
	ctx := context.Background()

	draw := &model.Draw{
		ID:        drawID,
		ProjectID: "project-" + drawID,
		Status:    model.DrawStatusPending,
		CreatedAt: time.Now(),
	}
	if err := store.SaveDraw(ctx, draw); err != nil {
		t.Fatalf("failed to seed draw: %v", err)
	}

	for i := range lines {
		lines[i].DrawID = drawID
	}
	if len(lines) > 0 {
		if err := store.SaveDrawLines(ctx, lines); err != nil {
			t.Fatalf("failed to seed draw lines: %v", err)
		}
	}
}

// SeedInvoice saves an invoice against a draw.
func SeedInvoice(t *testing.T, store *storage.SQLiteStorage, invoice *model.Invoice) {
	t.Helper()
	if err := store.SaveInvoice(context.Background(), invoice); err != nil {
		t.Fatalf("failed to seed invoice: %v", err)
	}
}
