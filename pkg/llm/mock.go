package llm

import (
	"context"
	"sync"
)

// MockCorrector is a test double for SQLCorrector. Set CorrectFunc to
// control behavior; the default echoes the input SQL back unchanged.
type MockCorrector struct {
	CorrectFunc func(ctx context.Context, req *CorrectionRequest) (*CorrectionResult, error)

	mu           sync.Mutex
	correctCalls int
	lastRequest  *CorrectionRequest
}

// NewMockCorrector creates a mock with default behavior.
func NewMockCorrector() *MockCorrector {
	return &MockCorrector{}
}

var _ SQLCorrector = (*MockCorrector)(nil)

// Correct invokes CorrectFunc or the default echo behavior.
func (m *MockCorrector) Correct(ctx context.Context, req *CorrectionRequest) (*CorrectionResult, error) {
	m.mu.Lock()
	m.correctCalls++
	m.lastRequest = req
	m.mu.Unlock()

	if m.CorrectFunc != nil {
		return m.CorrectFunc(ctx, req)
	}
	return &CorrectionResult{
		CorrectedSQL: req.SQL,
		Reason:       "no changes suggested",
	}, nil
}

// Model returns a fixed mock model name.
func (m *MockCorrector) Model() string {
	return "mock"
}

// CorrectCalls returns how many times Correct was invoked.
func (m *MockCorrector) CorrectCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.correctCalls
}

// LastRequest returns the most recent request passed to Correct.
func (m *MockCorrector) LastRequest() *CorrectionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequest
}
