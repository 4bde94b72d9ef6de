package match

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/ledgerock/drawmatch/internal/model"
	"github.com/ledgerock/drawmatch/internal/service"
	"github.com/ledgerock/drawmatch/internal/vendor"
)

// Saturation points for the training-score components. Three prior vendor
// matches of a category count as full vendor signal; five pattern
// occurrences count as full pattern signal.
const (
	vendorSaturation  = 3
	patternSaturation = 5

	vendorComponentMax  = 0.6
	tradeComponentMax   = 0.2
	keywordComponentMax = 0.2
)

// Generator scores open draw lines against one extracted invoice. It is pure
// with respect to its inputs apart from read-only pattern lookups.
type Generator struct {
	lookup service.PatternLookup
	cfg    Config
}

// NewGenerator creates a candidate generator backed by the given lookup.
func NewGenerator(lookup service.PatternLookup, cfg Config) *Generator {
	return &Generator{lookup: lookup, cfg: cfg}
}

// Candidates scores every open line against the invoice and returns the
// result ordered best-first. Lookup failures degrade to zero training signal
// rather than failing the matching attempt.
func (g *Generator) Candidates(ctx context.Context, inv model.ExtractedInvoiceData, lines []model.DrawLine) []model.MatchCandidate {
	if len(lines) == 0 {
		return nil
	}

	vendorKey := vendor.Normalize(inv.VendorName)

	history, err := g.lookup.GetVendorHistory(ctx, vendorKey)
	if err != nil {
		slog.Warn("Vendor history lookup failed, scoring without it",
			"vendor", vendorKey, "error", err)
		history = nil
	}

	var tradePatterns map[string]int
	if inv.Trade != "" {
		tradePatterns, err = g.lookup.GetTradePatterns(ctx, inv.Trade)
		if err != nil {
			slog.Warn("Trade pattern lookup failed, scoring without it",
				"trade", inv.Trade, "error", err)
			tradePatterns = nil
		}
	}

	candidates := make([]model.MatchCandidate, 0, len(lines))
	for _, line := range lines {
		candidates = append(candidates, g.scoreLine(ctx, inv, vendorKey, line, history, tradePatterns))
	}

	g.compose(inv, candidates)

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Composite != candidates[j].Composite {
			return candidates[i].Composite > candidates[j].Composite
		}
		return math.Abs(candidates[i].Factors.AmountVarianceAbsolute) <
			math.Abs(candidates[j].Factors.AmountVarianceAbsolute)
	})

	return candidates
}

// scoreLine computes the per-dimension scores for one line.
func (g *Generator) scoreLine(ctx context.Context, inv model.ExtractedInvoiceData, vendorKey string, line model.DrawLine, history map[string]model.VendorCategoryStat, tradePatterns map[string]int) model.MatchCandidate {
	c := model.MatchCandidate{
		DrawLineID:      line.ID,
		BudgetCategory:  line.BudgetCategory,
		NAHBCategory:    line.NAHBCategory,
		AmountRequested: line.AmountRequested,
	}

	c.Scores.Amount = g.amountScore(inv.Amount, line.AmountRequested, &c.Factors)
	c.Scores.Trade = g.tradeScore(inv, line, &c.Factors)
	c.Scores.Keywords = g.keywordScore(inv.Keywords, line, &c.Factors)
	c.Scores.Training = g.trainingScore(ctx, inv, vendorKey, line, history, tradePatterns, &c.Factors)

	return c
}

// amountScore rewards invoice amounts close to the requested line amount.
// Variance is recorded both relative and as a signed currency delta.
func (g *Generator) amountScore(invoiceAmount, requested float64, factors *model.MatchFactors) float64 {
	factors.AmountVarianceAbsolute = invoiceAmount - requested
	if requested <= 0 {
		factors.AmountVariance = 1
		return 0
	}

	variance := math.Abs(invoiceAmount-requested) / requested
	factors.AmountVariance = variance
	if variance >= 1 {
		return 0
	}
	return 1 - variance
}

// tradeScore checks the extracted trade signal against the line's category
// text, with half credit for a work-type match.
func (g *Generator) tradeScore(inv model.ExtractedInvoiceData, line model.DrawLine, factors *model.MatchFactors) float64 {
	categoryText := strings.ToLower(line.BudgetCategory + " " + line.NAHBCategory)

	if inv.Trade != "" && strings.Contains(categoryText, strings.ToLower(inv.Trade)) {
		factors.TradeMatch = true
		return 1
	}

	var score float64
	if inv.Trade != "" {
		score = tokenOverlapFraction(inv.Trade, categoryText)
		if score >= 1 {
			factors.TradeMatch = true
		}
	}

	if inv.WorkType != "" && strings.Contains(categoryText, strings.ToLower(inv.WorkType)) {
		if half := 0.5; half > score {
			score = half
		}
	}

	return score
}

// keywordScore measures overlap between extracted keywords and the line's
// category terms, case-insensitive exact token match.
func (g *Generator) keywordScore(keywords []string, line model.DrawLine, factors *model.MatchFactors) float64 {
	if len(keywords) == 0 {
		return 0
	}

	categoryTokens := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(line.BudgetCategory + " " + line.NAHBCategory)) {
		categoryTokens[tok] = true
	}

	var matched []string
	for _, kw := range keywords {
		if categoryTokens[strings.ToLower(kw)] {
			matched = append(matched, kw)
		}
	}

	factors.KeywordMatches = matched
	score := float64(len(matched)) / float64(len(keywords))
	if score > 1 {
		score = 1
	}
	return score
}

// trainingScore boosts categories the vendor has matched before and
// categories whose trade/keyword patterns recur in past training data.
func (g *Generator) trainingScore(ctx context.Context, inv model.ExtractedInvoiceData, vendorKey string, line model.DrawLine, history map[string]model.VendorCategoryStat, tradePatterns map[string]int, factors *model.MatchFactors) float64 {
	var score float64

	if stat, ok := history[line.BudgetCategory]; ok && stat.MatchCount > 0 {
		factors.VendorPreviousMatch = true
		factors.TrainingReason = fmt.Sprintf("vendor %q matched %q %d time(s) before",
			vendorKey, line.BudgetCategory, stat.MatchCount)
		score += saturate(stat.MatchCount, vendorSaturation) * vendorComponentMax
	}

	if count := tradePatterns[line.BudgetCategory]; count > 0 {
		score += saturate(count, patternSaturation) * tradeComponentMax
		if factors.TrainingReason == "" {
			factors.TrainingReason = fmt.Sprintf("trade %q seen with %q %d time(s) in training data",
				inv.Trade, line.BudgetCategory, count)
		}
	}

	if len(inv.Keywords) > 0 {
		overlap, err := g.lookup.GetKeywordPatterns(ctx, inv.Keywords, line.BudgetCategory)
		if err != nil {
			slog.Warn("Keyword pattern lookup failed, scoring without it",
				"category", line.BudgetCategory, "error", err)
		} else if overlap > 0 {
			score += saturate(overlap, patternSaturation) * keywordComponentMax
		}
	}

	if score > 1 {
		score = 1
	}
	return score
}

// compose combines dimension scores into composites. The weighted sum is
// normalized by the weights of the dimensions that actually had signal, so an
// invoice with no keywords or history is not penalized for their absence.
func (g *Generator) compose(inv model.ExtractedInvoiceData, candidates []model.MatchCandidate) {
	trainingEvaluable := false
	for i := range candidates {
		if candidates[i].Scores.Training > 0 {
			trainingEvaluable = true
			break
		}
	}

	weightSum := g.cfg.AmountWeight
	if inv.Trade != "" || inv.WorkType != "" {
		weightSum += g.cfg.TradeWeight
	}
	if len(inv.Keywords) > 0 {
		weightSum += g.cfg.KeywordWeight
	}
	if trainingEvaluable {
		weightSum += g.cfg.TrainingWeight
	}
	if weightSum <= 0 {
		return
	}

	for i := range candidates {
		c := &candidates[i]
		sum := g.cfg.AmountWeight * c.Scores.Amount
		if inv.Trade != "" || inv.WorkType != "" {
			sum += g.cfg.TradeWeight * c.Scores.Trade
		}
		if len(inv.Keywords) > 0 {
			sum += g.cfg.KeywordWeight * c.Scores.Keywords
		}
		if trainingEvaluable {
			sum += g.cfg.TrainingWeight * c.Scores.Training
		}
		c.Composite = sum / weightSum
	}
}

// saturate maps a count onto [0,1], reaching 1 at the saturation point.
func saturate(count, saturation int) float64 {
	if count >= saturation {
		return 1
	}
	return float64(count) / float64(saturation)
}

// tokenOverlapFraction returns the fraction of a's tokens present in b.
func tokenOverlapFraction(a, b string) float64 {
	aTokens := strings.Fields(strings.ToLower(a))
	if len(aTokens) == 0 {
		return 0
	}

	bTokens := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(b)) {
		bTokens[tok] = true
	}

	matched := 0
	for _, tok := range aTokens {
		if bTokens[tok] {
			matched++
		}
	}
	return float64(matched) / float64(len(aTokens))
}
