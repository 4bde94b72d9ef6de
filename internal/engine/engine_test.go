package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerock/drawmatch/internal/engine"
	"github.com/ledgerock/drawmatch/internal/match"
	"github.com/ledgerock/drawmatch/internal/model"
	"github.com/ledgerock/drawmatch/internal/storage"
	"github.com/ledgerock/drawmatch/internal/testutil"
)

func newTestEngine(t *testing.T, selector engine.Selector, cfg engine.Config) (*engine.MatchingEngine, *storage.SQLiteStorage) {
	t.Helper()
	store := testutil.SetupTestDB(t)
	return engine.New(store, selector, nil, cfg), store
}

func TestMatchInvoiceAutoMatchSkipsSelector(t *testing.T) {
	selector := &engine.MockSelector{}
	eng, store := newTestEngine(t, selector, engine.DefaultConfig())
	ctx := context.Background()

	testutil.SeedDraw(t, store, "draw-1", []model.DrawLine{
		{ID: "line-elec", BudgetCategory: "Electrical Rough-In", AmountRequested: 12400},
		{ID: "line-roof", BudgetCategory: "Roofing", AmountRequested: 42000},
	})
	testutil.SeedInvoice(t, store, &model.Invoice{
		ID:     "inv-1",
		DrawID: "draw-1",
		Extracted: model.ExtractedInvoiceData{
			VendorName: "Hill Country Electric",
			Amount:     12400,
			Trade:      "electrical",
		},
	})

	outcome, err := eng.MatchInvoice(ctx, "inv-1")
	require.NoError(t, err)

	assert.Equal(t, match.AutoMatch, outcome.Classification)
	assert.True(t, outcome.Applied)
	assert.False(t, outcome.Flagged)
	assert.Equal(t, "line-elec", outcome.DrawLineID)
	assert.Equal(t, model.MatchMethodAuto, outcome.Method)
	assert.GreaterOrEqual(t, outcome.Confidence, 0.9)

	// A clear winner never reaches the AI.
	assert.Equal(t, 0, selector.CallCount())

	stored, err := store.GetInvoice(ctx, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, "line-elec", stored.MatchedLineID)
	assert.Equal(t, "Electrical Rough-In", stored.MatchedCategory)
	assert.Equal(t, model.MatchMethodAuto, stored.MatchMethod)
}

func TestMatchInvoiceNoCandidatesSkipsSelector(t *testing.T) {
	selector := &engine.MockSelector{}
	eng, store := newTestEngine(t, selector, engine.DefaultConfig())
	ctx := context.Background()

	testutil.SeedDraw(t, store, "draw-1", []model.DrawLine{
		{ID: "line-1", BudgetCategory: "Landscaping", AmountRequested: 500},
	})
	testutil.SeedInvoice(t, store, &model.Invoice{
		ID:     "inv-1",
		DrawID: "draw-1",
		Extracted: model.ExtractedInvoiceData{
			VendorName: "Lone Star Concrete",
			Amount:     12400,
		},
	})

	outcome, err := eng.MatchInvoice(ctx, "inv-1")
	require.NoError(t, err)

	assert.Equal(t, match.NoCandidates, outcome.Classification)
	assert.False(t, outcome.Applied)
	assert.True(t, outcome.Flagged)
	assert.Equal(t, 0, selector.CallCount())

	stored, err := store.GetInvoice(ctx, "inv-1")
	require.NoError(t, err)
	assert.False(t, stored.IsMatched())
	assert.True(t, stored.FlaggedForReview)
}

func seedAmbiguousDraw(t *testing.T, store *storage.SQLiteStorage) {
	t.Helper()
	testutil.SeedDraw(t, store, "draw-1", []model.DrawLine{
		{ID: "line-a", BudgetCategory: "Plumbing Rough-In", AmountRequested: 9900},
		{ID: "line-b", BudgetCategory: "Plumbing Fixtures", AmountRequested: 10200},
	})
	testutil.SeedInvoice(t, store, &model.Invoice{
		ID:     "inv-1",
		DrawID: "draw-1",
		Extracted: model.ExtractedInvoiceData{
			VendorName: "Castillo Plumbing",
			Amount:     10000,
		},
	})
}

func TestMatchInvoiceAmbiguousAppliesAISelection(t *testing.T) {
	selector := &engine.MockSelector{
		Response: model.AISelectionResponse{
			SelectedDrawLineID: "line-b",
			Reasoning:          "fixture amounts align with the invoice",
			Confidence:         0.9,
		},
	}
	eng, store := newTestEngine(t, selector, engine.DefaultConfig())
	ctx := context.Background()

	seedAmbiguousDraw(t, store)

	outcome, err := eng.MatchInvoice(ctx, "inv-1")
	require.NoError(t, err)

	assert.Equal(t, match.MultipleCandidates, outcome.Classification)
	assert.Equal(t, 1, selector.CallCount())
	assert.True(t, outcome.Applied)
	assert.False(t, outcome.Flagged)
	assert.Equal(t, "line-b", outcome.DrawLineID)
	assert.Equal(t, model.MatchMethodAI, outcome.Method)
	assert.Equal(t, 0.9, outcome.Confidence)

	stored, err := store.GetInvoice(ctx, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, "line-b", stored.MatchedLineID)
	assert.Equal(t, model.MatchMethodAI, stored.MatchMethod)
}

func TestMatchInvoiceSelectorDeclineFallsBackToTopCandidate(t *testing.T) {
	selector := &engine.MockSelector{
		Response: model.AISelectionResponse{
			Reasoning:     "amounts are too close to call",
			FlagForReview: true,
			Factors:       model.SelectionFactors{Primary: model.SelectionReasonAIError},
		},
	}
	eng, store := newTestEngine(t, selector, engine.DefaultConfig())
	ctx := context.Background()

	seedAmbiguousDraw(t, store)

	outcome, err := eng.MatchInvoice(ctx, "inv-1")
	require.NoError(t, err)

	// line-a has the smaller amount variance, so it leads the deterministic
	// ranking and absorbs the fallback.
	assert.True(t, outcome.Applied)
	assert.True(t, outcome.Flagged)
	assert.Equal(t, "line-a", outcome.DrawLineID)
	assert.Equal(t, model.MatchMethodAuto, outcome.Method)

	stored, err := store.GetInvoice(ctx, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, "line-a", stored.MatchedLineID)
	assert.True(t, stored.FlaggedForReview)
}

func TestMatchInvoiceSelectorDeclineWithRequireHumanReview(t *testing.T) {
	selector := &engine.MockSelector{
		Response: model.AISelectionResponse{
			FlagForReview: true,
			Factors:       model.SelectionFactors{Primary: model.SelectionReasonAIError},
		},
	}
	cfg := engine.DefaultConfig()
	cfg.RequireHumanReview = true
	eng, store := newTestEngine(t, selector, cfg)
	ctx := context.Background()

	seedAmbiguousDraw(t, store)

	outcome, err := eng.MatchInvoice(ctx, "inv-1")
	require.NoError(t, err)

	assert.False(t, outcome.Applied)
	assert.True(t, outcome.Flagged)

	stored, err := store.GetInvoice(ctx, "inv-1")
	require.NoError(t, err)
	assert.False(t, stored.IsMatched())
	assert.True(t, stored.FlaggedForReview)
}

func TestMatchInvoiceCapsCandidatesShownToSelector(t *testing.T) {
	selector := &engine.MockSelector{
		Response: model.AISelectionResponse{SelectedDrawLineID: "line-0", Confidence: 0.8},
	}
	eng, store := newTestEngine(t, selector, engine.DefaultConfig())
	ctx := context.Background()

	// Seven lines all close enough to the invoice amount to stay viable.
	lines := make([]model.DrawLine, 7)
	for i := range lines {
		lines[i] = model.DrawLine{
			ID:              "line-" + string(rune('0'+i)),
			BudgetCategory:  "Category " + string(rune('A'+i)),
			AmountRequested: 10000 + float64(i)*150,
		}
	}
	testutil.SeedDraw(t, store, "draw-1", lines)
	testutil.SeedInvoice(t, store, &model.Invoice{
		ID:        "inv-1",
		DrawID:    "draw-1",
		Extracted: model.ExtractedInvoiceData{VendorName: "Acme", Amount: 10000},
	})

	_, err := eng.MatchInvoice(ctx, "inv-1")
	require.NoError(t, err)

	calls := selector.Calls()
	require.Len(t, calls, 1)
	assert.LessOrEqual(t, len(calls[0].Candidates), 5)
}

func TestRecordCorrection(t *testing.T) {
	selector := &engine.MockSelector{}
	eng, store := newTestEngine(t, selector, engine.DefaultConfig())
	ctx := context.Background()

	testutil.SeedDraw(t, store, "draw-1", []model.DrawLine{
		{ID: "line-wrong", BudgetCategory: "Framing", AmountRequested: 8000},
		{ID: "line-right", BudgetCategory: "Siding", NAHBCategory: "Exterior Finishes", AmountRequested: 8100},
	})
	testutil.SeedInvoice(t, store, &model.Invoice{
		ID:        "inv-1",
		DrawID:    "draw-1",
		Extracted: model.ExtractedInvoiceData{VendorName: "Acme Siding", Amount: 8000},
	})

	_, err := eng.MatchInvoice(ctx, "inv-1")
	require.NoError(t, err)

	before, err := store.GetInvoice(ctx, "inv-1")
	require.NoError(t, err)
	require.Equal(t, "line-wrong", before.MatchedLineID)

	decision, err := eng.RecordCorrection(ctx, engine.CorrectionParams{
		InvoiceID: "inv-1",
		NewLineID: "line-right",
		Reason:    "invoice is for siding, not framing",
		UserID:    "reviewer-7",
	})
	require.NoError(t, err)

	assert.Equal(t, "line-wrong", decision.PreviousLineID)
	assert.Equal(t, "line-right", decision.NewLineID)
	assert.Equal(t, "Siding", decision.NewCategory)
	assert.NotEmpty(t, decision.Candidates)

	after, err := store.GetInvoice(ctx, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, "line-right", after.MatchedLineID)
	assert.Equal(t, "Siding", after.MatchedCategory)
	assert.Equal(t, "Exterior Finishes", after.MatchedNAHB)
	assert.Equal(t, model.MatchMethodManual, after.MatchMethod)
	assert.True(t, after.WasCorrected)

	decisions, err := store.GetMatchDecisions(ctx, "inv-1")
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, model.DecisionManualOverride, decisions[0].DecisionType)
	assert.Equal(t, "reviewer-7", decisions[0].DecidedBy)
}

func TestRecordCorrectionUnknownLine(t *testing.T) {
	eng, store := newTestEngine(t, &engine.MockSelector{}, engine.DefaultConfig())
	ctx := context.Background()

	testutil.SeedDraw(t, store, "draw-1", []model.DrawLine{
		{ID: "line-1", BudgetCategory: "Framing", AmountRequested: 8000},
	})
	testutil.SeedInvoice(t, store, &model.Invoice{
		ID:        "inv-1",
		DrawID:    "draw-1",
		Extracted: model.ExtractedInvoiceData{VendorName: "Acme", Amount: 8000},
	})

	_, err := eng.RecordCorrection(ctx, engine.CorrectionParams{
		InvoiceID: "inv-1",
		NewLineID: "line-missing",
		UserID:    "reviewer-7",
	})
	require.Error(t, err)
}
