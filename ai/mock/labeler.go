package mock

import (
	"context"
	"strings"
	"sync/atomic"
)

// MockDomainLabeler is a test double for ai.DomainLabeler.
type MockDomainLabeler struct {
	// LabelDomainFunc is called by LabelDomain if set.
	// If nil, the label is the first two words of the first sample.
	LabelDomainFunc func(ctx context.Context, samples []string) (string, error)

	callCount atomic.Int64
}

// NewMockDomainLabeler creates a mock labeler with default behavior.
func NewMockDomainLabeler() *MockDomainLabeler {
	return &MockDomainLabeler{}
}

// LabelDomain returns a label derived from the samples.
func (m *MockDomainLabeler) LabelDomain(ctx context.Context, samples []string) (string, error) {
	m.callCount.Add(1)

	if m.LabelDomainFunc != nil {
		return m.LabelDomainFunc(ctx, samples)
	}
	if len(samples) == 0 {
		return "unnamed", nil
	}
	words := strings.Fields(samples[0])
	if len(words) > 2 {
		words = words[:2]
	}
	if len(words) == 0 {
		return "unnamed", nil
	}
	return strings.Join(words, " "), nil
}

// CallCount returns the number of times LabelDomain was called.
func (m *MockDomainLabeler) CallCount() int {
	return int(m.callCount.Load())
}
