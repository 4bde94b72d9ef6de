package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerock/drawmatch/internal/llm"
	"github.com/ledgerock/drawmatch/internal/model"
)

// stubClient is a canned llm.Client for gate tests.
type stubClient struct {
	result      llm.SelectionResult
	err         error
	prompts     []string
	hadDeadline bool
}

func (s *stubClient) SelectCandidate(ctx context.Context, prompt string) (llm.SelectionResult, error) {
	s.prompts = append(s.prompts, prompt)
	_, s.hadDeadline = ctx.Deadline()
	return s.result, s.err
}

func testCandidates(n int) []model.MatchCandidate {
	candidates := make([]model.MatchCandidate, n)
	for i := range candidates {
		candidates[i] = model.MatchCandidate{
			DrawLineID:      fmt.Sprintf("line-%d", i),
			BudgetCategory:  fmt.Sprintf("Category %d", i),
			AmountRequested: 1000 * float64(i+1),
			Composite:       1 - float64(i)*0.1,
		}
	}
	return candidates
}

func TestGateEmptyCandidatesDeclinesWithoutCalling(t *testing.T) {
	client := &stubClient{}
	gate := NewGate(client, time.Second, 5)

	response := gate.Select(context.Background(), model.ExtractedInvoiceData{}, nil)

	assert.Empty(t, response.SelectedDrawLineID)
	assert.True(t, response.FlagForReview)
	assert.Equal(t, model.SelectionReasonNoCandidates, response.Factors.Primary)
	assert.Empty(t, client.prompts)
}

func TestGateTransportErrorDegrades(t *testing.T) {
	client := &stubClient{err: errors.New("connection refused")}
	gate := NewGate(client, time.Second, 5)

	response := gate.Select(context.Background(), model.ExtractedInvoiceData{}, testCandidates(2))

	assert.Empty(t, response.SelectedDrawLineID)
	assert.True(t, response.FlagForReview)
	assert.Equal(t, 0.0, response.Confidence)
	assert.Equal(t, model.SelectionReasonAIError, response.Factors.Primary)
}

func TestGateMalformedResponseDegrades(t *testing.T) {
	client := &stubClient{err: fmt.Errorf("bad json: %w", llm.ErrMalformedResponse)}
	gate := NewGate(client, time.Second, 5)

	response := gate.Select(context.Background(), model.ExtractedInvoiceData{}, testCandidates(2))

	assert.Empty(t, response.SelectedDrawLineID)
	assert.True(t, response.FlagForReview)
	assert.Equal(t, model.SelectionReasonParseError, response.Factors.Primary)
}

func TestGateOutOfSetSelectionRejected(t *testing.T) {
	client := &stubClient{
		result: llm.SelectionResult{
			SelectedDrawLineID: "line-999",
			Confidence:         0.95,
			Reasoning:          "looks right",
		},
	}
	gate := NewGate(client, time.Second, 5)

	response := gate.Select(context.Background(), model.ExtractedInvoiceData{}, testCandidates(3))

	// A confident hallucination is still a hallucination.
	assert.Empty(t, response.SelectedDrawLineID)
	assert.True(t, response.FlagForReview)
	assert.Equal(t, 0.0, response.Confidence)
	assert.Equal(t, model.SelectionReasonInvalidSelection, response.Factors.Primary)
}

func TestGateValidSelectionPassesThrough(t *testing.T) {
	client := &stubClient{
		result: llm.SelectionResult{
			SelectedDrawLineID: "line-1",
			Confidence:         0.82,
			Reasoning:          "amount and category align",
			PrimaryFactor:      "amount_proximity",
			SupportingFactors:  []string{"category_keywords"},
		},
	}
	gate := NewGate(client, time.Second, 5)

	response := gate.Select(context.Background(), model.ExtractedInvoiceData{}, testCandidates(3))

	assert.Equal(t, "line-1", response.SelectedDrawLineID)
	assert.Equal(t, 0.82, response.Confidence)
	assert.False(t, response.FlagForReview)
	assert.Equal(t, "amount_proximity", response.Factors.Primary)
	assert.True(t, client.hadDeadline, "model call should be bounded by a deadline")
}

func TestGateExplicitDeclineFlagged(t *testing.T) {
	client := &stubClient{
		result: llm.SelectionResult{
			Reasoning: "no candidate fits this invoice",
		},
	}
	gate := NewGate(client, time.Second, 5)

	response := gate.Select(context.Background(), model.ExtractedInvoiceData{}, testCandidates(2))

	assert.Empty(t, response.SelectedDrawLineID)
	assert.True(t, response.FlagForReview)
}

func TestGateCapsCandidatesInPrompt(t *testing.T) {
	client := &stubClient{
		result: llm.SelectionResult{SelectedDrawLineID: "line-0", Confidence: 0.9},
	}
	gate := NewGate(client, time.Second, 3)

	gate.Select(context.Background(), model.ExtractedInvoiceData{}, testCandidates(6))

	require.Len(t, client.prompts, 1)
	prompt := client.prompts[0]
	assert.Contains(t, prompt, "line-2")
	assert.NotContains(t, prompt, "line-3")
}

func TestGateSelectionBeyondCapRejected(t *testing.T) {
	// The model picks a line that exists but was trimmed before the prompt.
	client := &stubClient{
		result: llm.SelectionResult{SelectedDrawLineID: "line-4", Confidence: 0.9},
	}
	gate := NewGate(client, time.Second, 3)

	response := gate.Select(context.Background(), model.ExtractedInvoiceData{}, testCandidates(6))

	assert.Empty(t, response.SelectedDrawLineID)
	assert.Equal(t, model.SelectionReasonInvalidSelection, response.Factors.Primary)
}

func TestBuildSelectionPromptIncludesInvoiceSignals(t *testing.T) {
	inv := model.ExtractedInvoiceData{
		VendorName: "Castillo Plumbing",
		Amount:     10000,
		Trade:      "plumbing",
		Keywords:   []string{"rough-in", "pex"},
		Context:    "second floor bathrooms",
	}

	prompt := buildSelectionPrompt(inv, testCandidates(2))

	for _, want := range []string{"Castillo Plumbing", "10000.00", "plumbing", "rough-in, pex", "second floor bathrooms"} {
		assert.True(t, strings.Contains(prompt, want), "prompt missing %q", want)
	}
	assert.Contains(t, prompt, "selectedDrawLineId")
}
