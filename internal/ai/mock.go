package ai

import (
	"context"
	"sync"
)

// MockClient is a scripted provider client for tests. Responses are returned
// in order; once exhausted the last one repeats. A non-nil Err is returned
// from every call instead.
type MockClient struct {
	Err       error
	Responses []string
	Prompts   []string
	Calls     int
	mu        sync.Mutex
}

// Complete implements Client.
func (m *MockClient) Complete(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	m.Prompts = append(m.Prompts, prompt)

	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "[]", nil
	}
	idx := m.Calls - 1
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return m.Responses[idx], nil
}

// CallCount returns how many times Complete was invoked.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}
