// Package engine orchestrates the invoice matching pipeline: candidate
// generation, deterministic classification, optional AI selection, and match
// application.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgerock/drawmatch/internal/match"
	"github.com/ledgerock/drawmatch/internal/model"
	"github.com/ledgerock/drawmatch/internal/service"

	"github.com/google/uuid"
)

// Config holds configuration options for the matching engine.
type Config struct {
	Match match.Config

	// SelectionTimeout bounds the AI selection call.
	SelectionTimeout time.Duration

	// RequireHumanReview leaves ambiguous invoices unmatched when the AI
	// declines, instead of falling back to the top deterministic candidate.
	RequireHumanReview bool
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Match:            match.DefaultConfig(),
		SelectionTimeout: DefaultSelectionTimeout,
	}
}

// MatchOutcome reports what the pipeline did with one invoice.
type MatchOutcome struct {
	Classification match.Classification
	DrawLineID     string
	Category       string
	Reason         string
	Method         model.MatchMethod
	Candidates     []model.MatchCandidate
	Confidence     float64
	Applied        bool
	Flagged        bool
}

// MatchingEngine wires candidate generation, classification, and the AI
// selection gate over a storage backend.
type MatchingEngine struct {
	storage   service.Storage
	generator *match.Generator
	selector  Selector
	notifier  Notifier
	cfg       Config
}

// New creates a matching engine. The notifier may be nil.
func New(storage service.Storage, selector Selector, notifier Notifier, cfg Config) *MatchingEngine {
	return &MatchingEngine{
		storage:   storage,
		generator: match.NewGenerator(storage, cfg.Match),
		selector:  selector,
		notifier:  notifier,
		cfg:       cfg,
	}
}

// MatchInvoice runs the full pipeline for one extracted invoice. Ambiguity
// and dependency failures degrade to a flagged outcome; an error return means
// the invoice itself could not be loaded or the match could not be stored.
func (e *MatchingEngine) MatchInvoice(ctx context.Context, invoiceID string) (*MatchOutcome, error) {
	invoice, err := e.storage.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice %s: %w", invoiceID, err)
	}

	lines, err := e.storage.GetOpenDrawLines(ctx, invoice.DrawID)
	if err != nil {
		return nil, fmt.Errorf("failed to load open lines for draw %s: %w", invoice.DrawID, err)
	}

	candidates := e.generator.Candidates(ctx, invoice.Extracted, lines)
	decision := match.Classify(candidates, e.cfg.Match)

	outcome := &MatchOutcome{
		Classification: decision.Classification,
		Candidates:     candidates,
	}

	switch decision.Classification {
	case match.NoCandidates:
		outcome.Flagged = true
		outcome.Reason = "no viable draw line candidates"
		if err := e.flagForReview(ctx, invoiceID, outcome.Reason); err != nil {
			return nil, err
		}

	case match.AutoMatch:
		if err := e.applyMatch(ctx, invoiceID, *decision.Best, model.MatchMethodAuto, decision.Confidence, false, outcome); err != nil {
			return nil, err
		}

	case match.MultipleCandidates:
		if err := e.disambiguate(ctx, invoice, candidates, outcome); err != nil {
			return nil, err
		}
	}

	slog.Info("Invoice matching complete",
		"invoice_id", invoiceID,
		"classification", outcome.Classification,
		"applied", outcome.Applied,
		"flagged", outcome.Flagged,
		"confidence", outcome.Confidence)

	return outcome, nil
}

// disambiguate runs the AI selection gate and applies its choice, falling
// back to the top deterministic candidate when the gate declines.
func (e *MatchingEngine) disambiguate(ctx context.Context, invoice *model.Invoice, candidates []model.MatchCandidate, outcome *MatchOutcome) error {
	shown := candidates
	if len(shown) > e.cfg.Match.MaxAICandidates {
		shown = shown[:e.cfg.Match.MaxAICandidates]
	}

	response := e.selector.Select(ctx, invoice.Extracted, shown)

	if response.SelectedDrawLineID != "" {
		selected := findCandidate(shown, response.SelectedDrawLineID)
		if selected == nil {
			// The gate validates membership itself; a miss here means a
			// broken Selector implementation.
			return fmt.Errorf("selector returned unknown draw line %s", response.SelectedDrawLineID)
		}
		outcome.Reason = response.Reasoning
		return e.applyMatch(ctx, invoice.ID, *selected, model.MatchMethodAI, response.Confidence, response.FlagForReview, outcome)
	}

	// Gate declined. Absence of a confident AI choice falls back to the
	// best deterministic ranking, still flagged, unless the caller requires
	// human sign-off.
	outcome.Reason = declineReason(response)
	if e.cfg.RequireHumanReview || len(candidates) == 0 {
		outcome.Flagged = true
		return e.flagForReview(ctx, invoice.ID, outcome.Reason)
	}

	return e.applyMatch(ctx, invoice.ID, candidates[0], model.MatchMethodAuto, candidates[0].Composite, true, outcome)
}

func (e *MatchingEngine) applyMatch(ctx context.Context, invoiceID string, candidate model.MatchCandidate, method model.MatchMethod, confidence float64, flag bool, outcome *MatchOutcome) error {
	err := e.storage.ApplyInvoiceMatch(ctx, service.ApplyMatchParams{
		InvoiceID:      invoiceID,
		DrawLineID:     candidate.DrawLineID,
		BudgetCategory: candidate.BudgetCategory,
		NAHBCategory:   candidate.NAHBCategory,
		Method:         method,
		Confidence:     confidence,
		FlagForReview:  flag,
	})
	if err != nil {
		return fmt.Errorf("failed to apply match: %w", err)
	}

	outcome.Applied = true
	outcome.Flagged = flag
	outcome.DrawLineID = candidate.DrawLineID
	outcome.Category = candidate.BudgetCategory
	outcome.Method = method
	outcome.Confidence = confidence

	if flag && e.notifier != nil {
		e.notifier.NotifyReview(ctx, invoiceID, outcome.Reason)
	}

	return nil
}

func (e *MatchingEngine) flagForReview(ctx context.Context, invoiceID, reason string) error {
	if err := e.storage.FlagInvoiceForReview(ctx, invoiceID, reason); err != nil {
		return fmt.Errorf("failed to flag invoice for review: %w", err)
	}
	if e.notifier != nil {
		e.notifier.NotifyReview(ctx, invoiceID, reason)
	}
	return nil
}

// CorrectionParams describes a human overriding a previous match.
type CorrectionParams struct {
	InvoiceID string
	NewLineID string
	Reason    string
	UserID    string
}

// RecordCorrection re-points an invoice match and writes an append-only
// decision record carrying the candidate set considered at correction time.
func (e *MatchingEngine) RecordCorrection(ctx context.Context, params CorrectionParams) (*model.MatchDecision, error) {
	invoice, err := e.storage.GetInvoice(ctx, params.InvoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice %s: %w", params.InvoiceID, err)
	}

	newLine, err := e.storage.GetDrawLine(ctx, params.NewLineID)
	if err != nil {
		return nil, fmt.Errorf("failed to load draw line %s: %w", params.NewLineID, err)
	}

	lines, err := e.storage.GetOpenDrawLines(ctx, invoice.DrawID)
	if err != nil {
		return nil, fmt.Errorf("failed to load open lines for draw %s: %w", invoice.DrawID, err)
	}
	candidates := e.generator.Candidates(ctx, invoice.Extracted, lines)

	decision := &model.MatchDecision{
		ID:             uuid.NewString(),
		InvoiceID:      params.InvoiceID,
		DecisionType:   model.DecisionManualOverride,
		PreviousLineID: invoice.MatchedLineID,
		NewLineID:      newLine.ID,
		NewCategory:    newLine.BudgetCategory,
		Candidates:     candidates,
		Reason:         params.Reason,
		DecidedBy:      params.UserID,
		CreatedAt:      time.Now(),
	}

	if err := e.storage.SaveMatchDecision(ctx, decision); err != nil {
		return nil, fmt.Errorf("failed to save match decision: %w", err)
	}

	err = e.storage.ApplyInvoiceMatch(ctx, service.ApplyMatchParams{
		InvoiceID:      params.InvoiceID,
		DrawLineID:     newLine.ID,
		BudgetCategory: newLine.BudgetCategory,
		NAHBCategory:   newLine.NAHBCategory,
		Method:         model.MatchMethodManual,
		Confidence:     1,
		Corrected:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply corrected match: %w", err)
	}

	slog.Info("Match correction recorded",
		"invoice_id", params.InvoiceID,
		"previous_line", decision.PreviousLineID,
		"new_line", decision.NewLineID,
		"user", params.UserID)

	return decision, nil
}

func findCandidate(candidates []model.MatchCandidate, drawLineID string) *model.MatchCandidate {
	for i := range candidates {
		if candidates[i].DrawLineID == drawLineID {
			return &candidates[i]
		}
	}
	return nil
}

func declineReason(response model.AISelectionResponse) string {
	if response.Reasoning != "" {
		return response.Reasoning
	}
	if response.Factors.Primary != "" {
		return response.Factors.Primary
	}
	return "ai selection declined"
}
