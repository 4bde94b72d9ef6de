package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// selectionJSON is the wire shape the prompt demands from the model.
type selectionJSON struct {
	SelectedDrawLineID *string `json:"selectedDrawLineId"`
	Reasoning          string  `json:"reasoning"`
	Factors            struct {
		Primary    string   `json:"primary"`
		Supporting []string `json:"supporting"`
	} `json:"factors"`
	Confidence    float64 `json:"confidence"`
	FlagForReview bool    `json:"flagForReview"`
}

// parseSelection parses a model reply under the strict JSON contract. Any
// free-text or structurally wrong reply is a malformed response.
func parseSelection(content string) (SelectionResult, error) {
	content = cleanMarkdownWrapper(content)

	var parsed selectionJSON
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return SelectionResult{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if parsed.Confidence < 0 || parsed.Confidence > 1 {
		return SelectionResult{}, fmt.Errorf("%w: confidence %v outside [0,1]", ErrMalformedResponse, parsed.Confidence)
	}

	result := SelectionResult{
		Reasoning:         parsed.Reasoning,
		PrimaryFactor:     parsed.Factors.Primary,
		SupportingFactors: parsed.Factors.Supporting,
		Confidence:        parsed.Confidence,
		FlagForReview:     parsed.FlagForReview,
	}
	if parsed.SelectedDrawLineID != nil {
		result.SelectedDrawLineID = strings.TrimSpace(*parsed.SelectedDrawLineID)
	}

	return result, nil
}

// cleanMarkdownWrapper strips a markdown code fence if the model wrapped its
// JSON in one despite instructions.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		if idx := strings.Index(content, "\n"); idx != -1 {
			content = content[idx+1:]
		}
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}

	return strings.TrimSpace(content)
}
