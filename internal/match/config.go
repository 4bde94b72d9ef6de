// Package match implements candidate generation and deterministic
// classification for invoice-to-draw-line matching.
package match

// Config holds the scoring weights and classification thresholds. Weights
// and thresholds are tunable via configuration; these defaults reflect the
// calibrated production values.
type Config struct {
	// Dimension weights for the composite score. Amount dominates.
	AmountWeight   float64
	TradeWeight    float64
	KeywordWeight  float64
	TrainingWeight float64

	// AutoMatchScore is the composite score above which the top candidate
	// may be applied without AI or human involvement.
	AutoMatchScore float64

	// ClearWinnerGap is the minimum lead the top candidate must hold over
	// the runner-up for an automatic match.
	ClearWinnerGap float64

	// MinCandidateScore is the floor below which the best candidate is not
	// considered viable at all.
	MinCandidateScore float64

	// MaxAICandidates caps how many candidates are shown to the AI
	// selection gate.
	MaxAICandidates int
}

// DefaultConfig returns the default scoring configuration.
func DefaultConfig() Config {
	return Config{
		AmountWeight:      0.50,
		TradeWeight:       0.20,
		KeywordWeight:     0.15,
		TrainingWeight:    0.15,
		AutoMatchScore:    0.85,
		ClearWinnerGap:    0.15,
		MinCandidateScore: 0.50,
		MaxAICandidates:   5,
	}
}
