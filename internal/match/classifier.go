package match

import "github.com/ledgerock/drawmatch/internal/model"

// Classification is the terminal outcome of deterministic classification.
type Classification string

// Classification outcomes. Exactly one applies to every candidate list.
const (
	AutoMatch          Classification = "AUTO_MATCH"
	MultipleCandidates Classification = "MULTIPLE_CANDIDATES"
	NoCandidates       Classification = "NO_CANDIDATES"
)

// Decision is the classifier's verdict on a scored candidate list.
type Decision struct {
	Best           *model.MatchCandidate
	Classification Classification
	Confidence     float64
	NeedsAI        bool
}

// Classify inspects an already-scored, best-first candidate list and decides
// whether to match automatically, escalate to AI disambiguation, or flag for
// manual review. It performs no additional scoring, only thresholding and
// gap comparison.
func Classify(candidates []model.MatchCandidate, cfg Config) Decision {
	if len(candidates) == 0 {
		return Decision{Classification: NoCandidates}
	}

	top := candidates[0]
	if top.Composite < cfg.MinCandidateScore {
		return Decision{Classification: NoCandidates}
	}

	clearWinner := len(candidates) == 1 ||
		top.Composite-candidates[1].Composite >= cfg.ClearWinnerGap

	if top.Composite >= cfg.AutoMatchScore && clearWinner {
		return Decision{
			Classification: AutoMatch,
			Confidence:     top.Composite,
			Best:           &top,
		}
	}

	return Decision{
		Classification: MultipleCandidates,
		Confidence:     top.Composite,
		NeedsAI:        true,
		Best:           &top,
	}
}
