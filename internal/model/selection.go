package model

// Selection decline reasons, recorded as the primary factor when the AI
// selection gate cannot produce a trusted choice.
const (
	SelectionReasonNoCandidates     = "no_candidates"
	SelectionReasonAIError          = "ai_error"
	SelectionReasonParseError       = "parse_error"
	SelectionReasonInvalidSelection = "invalid_selection"
)

// SelectionFactors summarizes what drove an AI selection.
type SelectionFactors struct {
	Primary    string
	Supporting []string
}

// AISelectionResponse is the validated result of the AI selection gate. An
// empty SelectedDrawLineID means the gate declined and the invoice needs a
// human decision.
type AISelectionResponse struct {
	SelectedDrawLineID string
	Reasoning          string
	Factors            SelectionFactors
	Confidence         float64
	FlagForReview      bool
}
