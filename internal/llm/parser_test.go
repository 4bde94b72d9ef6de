package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelectionValid(t *testing.T) {
	content := `{
		"selectedDrawLineId": "line-42",
		"confidence": 0.87,
		"reasoning": "Amount and trade both align with the electrical rough-in line.",
		"flagForReview": false,
		"factors": {"primary": "amount", "supporting": ["trade", "vendor_history"]}
	}`

	result, err := parseSelection(content)
	require.NoError(t, err)
	assert.Equal(t, "line-42", result.SelectedDrawLineID)
	assert.Equal(t, 0.87, result.Confidence)
	assert.False(t, result.FlagForReview)
	assert.Equal(t, "amount", result.PrimaryFactor)
	assert.Equal(t, []string{"trade", "vendor_history"}, result.SupportingFactors)
}

func TestParseSelectionNullSelection(t *testing.T) {
	content := `{"selectedDrawLineId": null, "confidence": 0, "reasoning": "Too close to call.", "flagForReview": true, "factors": {"primary": "ambiguous", "supporting": []}}`

	result, err := parseSelection(content)
	require.NoError(t, err)
	assert.Empty(t, result.SelectedDrawLineID)
	assert.True(t, result.FlagForReview)
}

func TestParseSelectionMarkdownWrapped(t *testing.T) {
	content := "```json\n{\"selectedDrawLineId\": \"line-1\", \"confidence\": 0.9, \"reasoning\": \"ok\", \"flagForReview\": false, \"factors\": {\"primary\": \"amount\", \"supporting\": []}}\n```"

	result, err := parseSelection(content)
	require.NoError(t, err)
	assert.Equal(t, "line-1", result.SelectedDrawLineID)
}

func TestParseSelectionFreeText(t *testing.T) {
	_, err := parseSelection("I think the invoice belongs to the framing line.")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestParseSelectionConfidenceOutOfRange(t *testing.T) {
	content := `{"selectedDrawLineId": "line-1", "confidence": 1.4, "reasoning": "x", "flagForReview": false, "factors": {"primary": "amount", "supporting": []}}`

	_, err := parseSelection(content)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestCleanMarkdownWrapper(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}\n```":     `{"a":1}`,
		`{"a":1}`:                 `{"a":1}`,
		"  {\"a\":1}  ":           `{"a":1}`,
	}

	for in, want := range cases {
		assert.Equal(t, want, cleanMarkdownWrapper(in))
	}
}
