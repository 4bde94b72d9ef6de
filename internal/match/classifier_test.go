package match

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerock/drawmatch/internal/model"
)

func candidateWithScore(id string, composite float64) model.MatchCandidate {
	return model.MatchCandidate{DrawLineID: id, Composite: composite}
}

func TestClassifyEmptyList(t *testing.T) {
	decision := Classify(nil, DefaultConfig())
	assert.Equal(t, NoCandidates, decision.Classification)
	assert.False(t, decision.NeedsAI)
	assert.Nil(t, decision.Best)
}

func TestClassifyBelowFloor(t *testing.T) {
	decision := Classify([]model.MatchCandidate{
		candidateWithScore("a", 0.42),
		candidateWithScore("b", 0.12),
	}, DefaultConfig())
	assert.Equal(t, NoCandidates, decision.Classification)
}

func TestClassifyClearWinner(t *testing.T) {
	decision := Classify([]model.MatchCandidate{
		candidateWithScore("a", 0.95),
		candidateWithScore("b", 0.60),
	}, DefaultConfig())

	assert.Equal(t, AutoMatch, decision.Classification)
	assert.Equal(t, 0.95, decision.Confidence)
	require.NotNil(t, decision.Best)
	assert.Equal(t, "a", decision.Best.DrawLineID)
	assert.False(t, decision.NeedsAI)
}

func TestClassifySingleStrongCandidate(t *testing.T) {
	decision := Classify([]model.MatchCandidate{
		candidateWithScore("only", 0.90),
	}, DefaultConfig())
	assert.Equal(t, AutoMatch, decision.Classification)
}

func TestClassifyCloseRaceNeedsAI(t *testing.T) {
	// Both candidates clear the auto threshold but sit within the winner
	// gap of each other, so the race goes to disambiguation.
	decision := Classify([]model.MatchCandidate{
		candidateWithScore("a", 0.92),
		candidateWithScore("b", 0.90),
	}, DefaultConfig())

	assert.Equal(t, MultipleCandidates, decision.Classification)
	assert.True(t, decision.NeedsAI)
}

func TestClassifyMidBandNeedsAI(t *testing.T) {
	decision := Classify([]model.MatchCandidate{
		candidateWithScore("a", 0.70),
		candidateWithScore("b", 0.20),
	}, DefaultConfig())

	assert.Equal(t, MultipleCandidates, decision.Classification)
	assert.True(t, decision.NeedsAI)
}

func TestClassifyExhaustiveAndExclusive(t *testing.T) {
	lists := [][]model.MatchCandidate{
		nil,
		{candidateWithScore("a", 0.1)},
		{candidateWithScore("a", 0.55)},
		{candidateWithScore("a", 0.86)},
		{candidateWithScore("a", 0.99), candidateWithScore("b", 0.98)},
		{candidateWithScore("a", 0.99), candidateWithScore("b", 0.10)},
		{candidateWithScore("a", 0.5), candidateWithScore("b", 0.5), candidateWithScore("c", 0.5)},
	}

	valid := map[Classification]bool{
		AutoMatch:          true,
		MultipleCandidates: true,
		NoCandidates:       true,
	}

	for i, list := range lists {
		decision := Classify(list, DefaultConfig())
		assert.True(t, valid[decision.Classification], "list %d returned %q", i, decision.Classification)
	}
}

func TestScenarioExactAmountSingleLineAutoMatches(t *testing.T) {
	gen := newTestGenerator(nil)

	inv := model.ExtractedInvoiceData{
		VendorName: "Hill Country Electric",
		Amount:     12400,
		Trade:      "electrical",
	}
	lines := []model.DrawLine{
		{ID: "line-1", BudgetCategory: "Electrical", AmountRequested: 12400},
	}

	candidates := gen.Candidates(context.Background(), inv, lines)
	decision := Classify(candidates, DefaultConfig())

	assert.Equal(t, AutoMatch, decision.Classification)
	assert.GreaterOrEqual(t, decision.Confidence, 0.9)
}

func TestScenarioTwoNearbyAmountsEscalate(t *testing.T) {
	gen := newTestGenerator(nil)

	inv := model.ExtractedInvoiceData{VendorName: "Acme", Amount: 10000}
	lines := []model.DrawLine{
		{ID: "low", BudgetCategory: "Framing", AmountRequested: 9800},
		{ID: "high", BudgetCategory: "Siding", AmountRequested: 10200},
	}

	candidates := gen.Candidates(context.Background(), inv, lines)
	decision := Classify(candidates, DefaultConfig())

	assert.Equal(t, MultipleCandidates, decision.Classification)
	assert.True(t, decision.NeedsAI)
}
