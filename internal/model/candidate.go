package model

// DimensionScores holds the per-dimension match scores, each in [0,1].
type DimensionScores struct {
	Amount   float64
	Trade    float64
	Keywords float64
	Training float64
}

// MatchFactors explains why a candidate scored the way it did. These are
// surfaced to reviewers alongside the composite score.
type MatchFactors struct {
	TrainingReason         string
	KeywordMatches         []string
	AmountVariance         float64
	AmountVarianceAbsolute float64
	TradeMatch             bool
	VendorPreviousMatch    bool
}

// MatchCandidate is one scored invoice-to-draw-line pairing. Candidates are
// recomputed on every matching attempt and never persisted.
type MatchCandidate struct {
	DrawLineID      string
	BudgetCategory  string
	NAHBCategory    string
	Factors         MatchFactors
	Scores          DimensionScores
	AmountRequested float64
	Composite       float64
}
