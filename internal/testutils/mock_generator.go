package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"bytedge/pkg/edgetypes"
)

// GenerateCall records one Generate invocation.
type GenerateCall struct {
	Prompt  string
	Options edgetypes.GenerationOptions
}

// MockGenerator implements edgetypes.LLMClient with scripted behaviour.
// By default it echoes a short reply derived from the prompt's last question.
type MockGenerator struct {
	mu        sync.Mutex
	calls     []GenerateCall
	responses []string
	err       error
	failNext  int
	delay     time.Duration
	reply     func(prompt string) string
	inFlight  int
	maxFlight int

	// Provider is returned by GetProviderName. Defaults to "mock".
	Provider string
}

// NewMockGenerator creates a MockGenerator with default echo behaviour.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{Provider: "mock"}
}

// SetResponses queues replies returned in order; once exhausted the default reply is used.
func (m *MockGenerator) SetResponses(responses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append([]string(nil), responses...)
}

// SetReplyFunc overrides the default reply.
func (m *MockGenerator) SetReplyFunc(fn func(prompt string) string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reply = fn
}

// SetError makes every call fail with err. nil restores normal behaviour.
func (m *MockGenerator) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// FailNext makes the next n calls fail with a provider error.
func (m *MockGenerator) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
}

// SetDelay makes each call wait d, or until ctx is done.
func (m *MockGenerator) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Generate implements edgetypes.Generator.
func (m *MockGenerator) Generate(ctx context.Context, prompt string, opts edgetypes.GenerationOptions) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, GenerateCall{Prompt: prompt, Options: opts})
	m.inFlight++
	if m.inFlight > m.maxFlight {
		m.maxFlight = m.inFlight
	}
	delay := m.delay
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return "", m.err
	}
	if m.failNext > 0 {
		m.failNext--
		return "", fmt.Errorf("mock provider unavailable")
	}
	if len(m.responses) > 0 {
		r := m.responses[0]
		m.responses = m.responses[1:]
		return r, nil
	}
	if m.reply != nil {
		return m.reply(prompt), nil
	}
	return DefaultReply(prompt), nil
}

// DefaultReply is the reply MockGenerator gives when nothing is scripted.
func DefaultReply(prompt string) string {
	const marker = "Current User Question: "
	question := prompt
	if i := strings.LastIndex(prompt, marker); i >= 0 {
		question = prompt[i+len(marker):]
		if j := strings.Index(question, "\n\n"); j >= 0 {
			question = question[:j]
		}
	}
	return "mock reply to: " + strings.TrimSpace(question)
}

// GetProviderName implements edgetypes.LLMClient.
func (m *MockGenerator) GetProviderName() string {
	return m.Provider
}

// IsConfigured implements edgetypes.LLMClient.
func (m *MockGenerator) IsConfigured() bool {
	return true
}

// Calls returns a copy of the recorded calls.
func (m *MockGenerator) Calls() []GenerateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GenerateCall(nil), m.calls...)
}

// CallCount returns how many times Generate was called.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastPrompt returns the most recent prompt, or "" if none.
func (m *MockGenerator) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return ""
	}
	return m.calls[len(m.calls)-1].Prompt
}

// MaxConcurrent returns the highest number of simultaneous Generate calls observed.
func (m *MockGenerator) MaxConcurrent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxFlight
}

var _ edgetypes.LLMClient = (*MockGenerator)(nil)
