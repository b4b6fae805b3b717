package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is a scripted Client for tests.
type MockClient struct {
	// Responses are returned by successive SendPrompt calls; once they run
	// out every call returns Default.
	Responses []string
	Default   string
	CreateErr error
	PromptErr error
	// Deleted lists the sessions passed to DeleteSession.
	Deleted []string

	mu       sync.Mutex
	calls    []PromptCall
	sessions int
}

// PromptCall records a call to SendPrompt.
type PromptCall struct {
	SessionID string
	Prompt    string
}

// NewMockClient creates a MockClient that answers "[]".
func NewMockClient() *MockClient {
	return &MockClient{Default: "[]"}
}

func (m *MockClient) CreateSession(_ context.Context, title string, _ string) (*SessionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.sessions++
	return &SessionInfo{ID: fmt.Sprintf("mock-%d", m.sessions), Title: title}, nil
}

func (m *MockClient) SendPrompt(_ context.Context, sessionID string, prompt string) (*PromptResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, PromptCall{SessionID: sessionID, Prompt: prompt})
	if m.PromptErr != nil {
		return nil, m.PromptErr
	}
	content := m.Default
	if len(m.Responses) > 0 {
		content, m.Responses = m.Responses[0], m.Responses[1:]
	}
	return &PromptResponse{Content: content}, nil
}

func (m *MockClient) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, sessionID)
	return nil
}

func (m *MockClient) AbortSession(context.Context, string) error { return nil }

// Calls returns the prompts sent so far.
func (m *MockClient) Calls() []PromptCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PromptCall(nil), m.calls...)
}
