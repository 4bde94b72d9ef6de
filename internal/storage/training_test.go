package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ledgerock/drawmatch/internal/model"
)

func testRecord(invoiceID string) *model.TrainingRecord {
	return &model.TrainingRecord{
		InvoiceID:      invoiceID,
		DrawID:         "draw-1",
		ApprovedAt:     time.Now(),
		VendorName:     "Hill Country Electric LLC",
		Amount:         12400,
		Keywords:       []string{"panel", "rough-in"},
		Trade:          "electrical",
		BudgetCategory: "Electrical Rough-In",
		MatchMethod:    model.MatchMethodAuto,
		Confidence:     0.95,
	}
}

func TestInsertTrainingRecordWriteOncePerInvoice(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	created, err := store.InsertTrainingRecord(ctx, testRecord("inv-1"))
	if err != nil {
		t.Fatalf("failed to insert record: %v", err)
	}
	if !created {
		t.Fatal("first insert should report created")
	}

	// Same invoice again: silently skipped, not an error.
	created, err = store.InsertTrainingRecord(ctx, testRecord("inv-1"))
	if err != nil {
		t.Fatalf("duplicate insert errored: %v", err)
	}
	if created {
		t.Error("duplicate insert should not report created")
	}
}

func TestUpsertVendorAssociationAccumulates(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	for _, amount := range []float64{1000, 2500} {
		err := store.UpsertVendorAssociation(ctx, "Hill Country Electric", "Electrical Rough-In", amount, now)
		if err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}
	}

	associations, err := store.GetVendorAssociations(ctx, "Hill Country Electric")
	if err != nil {
		t.Fatalf("failed to get associations: %v", err)
	}
	if len(associations) != 1 {
		t.Fatalf("associations = %d, want 1", len(associations))
	}
	if associations[0].MatchCount != 2 {
		t.Errorf("match count = %d, want 2", associations[0].MatchCount)
	}
	if associations[0].TotalAmount != 3500 {
		t.Errorf("total = %v, want 3500", associations[0].TotalAmount)
	}
}

func TestUpsertVendorAssociationConcurrentIncrements(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.UpsertVendorAssociation(ctx, "Acme Concrete", "Foundation", 100, time.Now())
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent upsert failed: %v", err)
		}
	}

	associations, err := store.GetVendorAssociations(ctx, "Acme Concrete")
	if err != nil {
		t.Fatalf("failed to get associations: %v", err)
	}
	if len(associations) != 1 {
		t.Fatalf("associations = %d, want 1", len(associations))
	}
	if associations[0].MatchCount != workers {
		t.Errorf("match count = %d, want %d (lost increments)", associations[0].MatchCount, workers)
	}
	if associations[0].TotalAmount != float64(workers)*100 {
		t.Errorf("total = %v, want %v", associations[0].TotalAmount, float64(workers)*100)
	}
}

func TestVendorLookupsNormalizeNames(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	err := store.UpsertVendorAssociation(ctx, "ABC Plumbing, LLC", "Plumbing Rough-In", 9800, time.Now())
	if err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}

	// Any raw variant of the vendor name resolves to the same history.
	for _, variant := range []string{"abc plumbing", "ABC PLUMBING", "A.B.C. Plumbing Inc"} {
		history, err := store.GetVendorHistory(ctx, variant)
		if err != nil {
			t.Fatalf("failed to get history for %q: %v", variant, err)
		}
		if variant == "A.B.C. Plumbing Inc" {
			// Different normalized key; no history expected.
			if len(history) != 0 {
				t.Errorf("history for %q = %v, want empty", variant, history)
			}
			continue
		}
		if history["Plumbing Rough-In"].MatchCount != 1 {
			t.Errorf("history for %q = %v", variant, history)
		}
	}
}

func TestGetVendorHistoryUnknownVendor(t *testing.T) {
	store := createTestStorage(t)

	history, err := store.GetVendorHistory(context.Background(), "Never Seen Before")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("history = %v, want empty", history)
	}
}

func TestGetTradePatterns(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	records := []*model.TrainingRecord{
		testRecord("inv-1"),
		testRecord("inv-2"),
	}
	records[1].BudgetCategory = "Electrical Finish"

	other := testRecord("inv-3")
	other.Trade = "plumbing"
	other.BudgetCategory = "Plumbing Rough-In"
	records = append(records, other)

	for _, record := range records {
		if _, err := store.InsertTrainingRecord(ctx, record); err != nil {
			t.Fatalf("failed to insert record: %v", err)
		}
	}

	patterns, err := store.GetTradePatterns(ctx, "Electrical")
	if err != nil {
		t.Fatalf("failed to get patterns: %v", err)
	}
	if patterns["Electrical Rough-In"] != 1 || patterns["Electrical Finish"] != 1 {
		t.Errorf("patterns = %v", patterns)
	}
	if _, ok := patterns["Plumbing Rough-In"]; ok {
		t.Error("plumbing category leaked into electrical patterns")
	}
}

func TestGetKeywordPatterns(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	if _, err := store.InsertTrainingRecord(ctx, testRecord("inv-1")); err != nil {
		t.Fatalf("failed to insert record: %v", err)
	}

	count, err := store.GetKeywordPatterns(ctx, []string{"PANEL", "conduit"}, "Electrical Rough-In")
	if err != nil {
		t.Fatalf("failed to get keyword patterns: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	count, err = store.GetKeywordPatterns(ctx, []string{"drywall"}, "Electrical Rough-In")
	if err != nil {
		t.Fatalf("failed to get keyword patterns: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}

	count, err = store.GetKeywordPatterns(ctx, nil, "Electrical Rough-In")
	if err != nil {
		t.Fatalf("failed to get keyword patterns: %v", err)
	}
	if count != 0 {
		t.Errorf("count for no keywords = %d, want 0", count)
	}
}
