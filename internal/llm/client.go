// Package llm provides clients for the language-model providers used by the
// AI selection gate. Providers are held to a strict JSON-only response
// contract; anything else is a malformed response.
package llm

import (
	"context"
	"errors"
	"time"
)

// ErrMalformedResponse indicates the model's reply could not be parsed as
// the expected structured result.
var ErrMalformedResponse = errors.New("malformed model response")

// Config holds provider configuration.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// SelectionResult is the model's raw (already parsed, not yet validated)
// answer to a candidate-selection prompt. An empty SelectedDrawLineID means
// the model declined to choose.
type SelectionResult struct {
	SelectedDrawLineID string
	Reasoning          string
	PrimaryFactor      string
	SupportingFactors  []string
	Confidence         float64
	FlagForReview      bool
}

// Client defines the interface for LLM providers.
type Client interface {
	SelectCandidate(ctx context.Context, prompt string) (SelectionResult, error)
}
