package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ledgerock/drawmatch/internal/llm"
	"github.com/ledgerock/drawmatch/internal/model"
)

// DefaultSelectionTimeout bounds a single model call.
const DefaultSelectionTimeout = 30 * time.Second

// Gate is the AI selection step for ambiguous matches. It is a closed-world
// chooser: it may only select a draw line present in the candidates it was
// given, or decline. Any other behavior from the model is downgraded to a
// review flag, never trusted.
type Gate struct {
	client        llm.Client
	timeout       time.Duration
	maxCandidates int
}

// NewGate creates a selection gate around an LLM client.
func NewGate(client llm.Client, timeout time.Duration, maxCandidates int) *Gate {
	if timeout <= 0 {
		timeout = DefaultSelectionTimeout
	}
	if maxCandidates <= 0 {
		maxCandidates = 5
	}
	return &Gate{client: client, timeout: timeout, maxCandidates: maxCandidates}
}

// Select asks the model to pick one candidate. All failure modes (empty
// input, transport errors, timeouts, malformed replies, out-of-set
// selections) return a flagged response instead of an error.
func (g *Gate) Select(ctx context.Context, inv model.ExtractedInvoiceData, candidates []model.MatchCandidate) model.AISelectionResponse {
	if len(candidates) == 0 {
		return declined(model.SelectionReasonNoCandidates, "no candidates provided for selection")
	}

	if len(candidates) > g.maxCandidates {
		candidates = candidates[:g.maxCandidates]
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := g.client.SelectCandidate(ctx, buildSelectionPrompt(inv, candidates))
	if err != nil {
		if errors.Is(err, llm.ErrMalformedResponse) {
			slog.Warn("AI selection response unparseable", "error", err)
			return declined(model.SelectionReasonParseError, "model response was not the expected structured result")
		}
		slog.Warn("AI selection call failed", "error", err)
		return declined(model.SelectionReasonAIError, "model call failed or timed out")
	}

	response := model.AISelectionResponse{
		SelectedDrawLineID: result.SelectedDrawLineID,
		Reasoning:          result.Reasoning,
		Confidence:         result.Confidence,
		FlagForReview:      result.FlagForReview,
		Factors: model.SelectionFactors{
			Primary:    result.PrimaryFactor,
			Supporting: result.SupportingFactors,
		},
	}

	if response.SelectedDrawLineID == "" {
		response.FlagForReview = true
		return response
	}

	if !candidateSetContains(candidates, response.SelectedDrawLineID) {
		slog.Warn("AI selected a draw line outside the candidate set",
			"selected", response.SelectedDrawLineID)
		return declined(model.SelectionReasonInvalidSelection,
			fmt.Sprintf("model selected %q which is not among the offered candidates", response.SelectedDrawLineID))
	}

	return response
}

// declined builds a flagged, zero-confidence response for a failure mode.
func declined(reason, detail string) model.AISelectionResponse {
	return model.AISelectionResponse{
		Reasoning:     detail,
		Confidence:    0,
		FlagForReview: true,
		Factors:       model.SelectionFactors{Primary: reason},
	}
}

func candidateSetContains(candidates []model.MatchCandidate, drawLineID string) bool {
	for _, c := range candidates {
		if c.DrawLineID == drawLineID {
			return true
		}
	}
	return false
}

// buildSelectionPrompt renders the invoice and candidate set into the
// low-temperature, JSON-only selection contract.
func buildSelectionPrompt(inv model.ExtractedInvoiceData, candidates []model.MatchCandidate) string {
	var b strings.Builder

	b.WriteString("An invoice needs to be matched to exactly one draw line, or flagged for human review.\n\n")
	b.WriteString("Invoice:\n")
	fmt.Fprintf(&b, "- vendor: %s\n", inv.VendorName)
	fmt.Fprintf(&b, "- amount: %.2f\n", inv.Amount)
	if inv.Trade != "" {
		fmt.Fprintf(&b, "- trade: %s\n", inv.Trade)
	}
	if inv.WorkType != "" {
		fmt.Fprintf(&b, "- work type: %s\n", inv.WorkType)
	}
	if len(inv.Keywords) > 0 {
		fmt.Fprintf(&b, "- keywords: %s\n", strings.Join(inv.Keywords, ", "))
	}
	if inv.Context != "" {
		fmt.Fprintf(&b, "- context: %s\n", inv.Context)
	}

	b.WriteString("\nCandidate draw lines (pre-scored, best first):\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. id=%s category=%q", i+1, c.DrawLineID, c.BudgetCategory)
		if c.NAHBCategory != "" {
			fmt.Fprintf(&b, " nahb=%q", c.NAHBCategory)
		}
		fmt.Fprintf(&b, " requested=%.2f variance=%+.2f composite=%.3f",
			c.AmountRequested, c.Factors.AmountVarianceAbsolute, c.Composite)
		if c.Factors.VendorPreviousMatch {
			b.WriteString(" vendor_previous_match=true")
		}
		if len(c.Factors.KeywordMatches) > 0 {
			fmt.Fprintf(&b, " keyword_matches=%s", strings.Join(c.Factors.KeywordMatches, ","))
		}
		b.WriteString("\n")
	}

	b.WriteString(`
Choose the single best draw line id FROM THE LIST ABOVE, or decline.
You must never invent an id that is not listed.

Respond with only this JSON object and nothing else:
{
  "selectedDrawLineId": "<an id from the list, or null to decline>",
  "confidence": <number between 0 and 1>,
  "reasoning": "<one sentence>",
  "flagForReview": <true if a human should confirm>,
  "factors": {"primary": "<main deciding factor>", "supporting": ["<other factors>"]}
}
`)

	return b.String()
}
