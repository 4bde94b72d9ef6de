package engine

import (
	"context"
	"sync"

	"github.com/ledgerock/drawmatch/internal/model"
)

// MockSelector is a test implementation of the Selector interface. It returns
// a canned response and records every call.
type MockSelector struct {
	Response model.AISelectionResponse
	calls    []MockSelectorCall
	mu       sync.Mutex
}

// MockSelectorCall records details of one selection request.
type MockSelectorCall struct {
	Invoice    model.ExtractedInvoiceData
	Candidates []model.MatchCandidate
}

// Select returns the canned response.
func (m *MockSelector) Select(_ context.Context, inv model.ExtractedInvoiceData, candidates []model.MatchCandidate) model.AISelectionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockSelectorCall{Invoice: inv, Candidates: candidates})
	return m.Response
}

// CallCount returns how many times Select was invoked.
func (m *MockSelector) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns a copy of the recorded calls.
func (m *MockSelector) Calls() []MockSelectorCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockSelectorCall, len(m.calls))
	copy(out, m.calls)
	return out
}
