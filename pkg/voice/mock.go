package voice

import (
	"context"
	"sync"
)

// MockSession is an in-memory Session for testing. Tests drive inbound
// events through the Emit methods and inspect what the caller sent.
type MockSession struct {
	cfg Config

	// StartErr, when set, makes Start fail with it.
	StartErr error

	mu        sync.Mutex
	connected bool
	starts    int
	sent      [][]byte
	results   map[string]string

	onAudioOut    func(pcm16 []byte)
	onTranscript  func(speaker, text string, isFinal bool)
	onToolCall    func(call ToolCall)
	onInterrupted func()
	onClosed      func()
	onError       func(err error)
}

// NewMockSession creates a mock session.
func NewMockSession(cfg Config) *MockSession {
	return &MockSession{
		cfg:     cfg,
		results: make(map[string]string),
	}
}

// Start marks the session connected.
func (m *MockSession) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.starts++
	if m.StartErr != nil {
		return m.StartErr
	}
	if m.connected {
		return ErrAlreadyStarted
	}
	m.connected = true
	return nil
}

// Stop marks the session disconnected. Idempotent.
func (m *MockSession) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// IsConnected reports the connected flag.
func (m *MockSession) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// SendAudio records the frame, or rejects it when not connected.
func (m *MockSession) SendAudio(pcm16 []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	frame := make([]byte, len(pcm16))
	copy(frame, pcm16)
	m.sent = append(m.sent, frame)
	return nil
}

// SubmitToolResult records the result for the given call ID.
func (m *MockSession) SubmitToolResult(callID, result string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[callID] = result
	return nil
}

// Config returns the session configuration.
func (m *MockSession) Config() Config { return m.cfg }

// Callback setters.

func (m *MockSession) OnAudioOut(fn func(pcm16 []byte)) { m.onAudioOut = fn }
func (m *MockSession) OnTranscript(fn func(speaker, text string, isFinal bool)) {
	m.onTranscript = fn
}
func (m *MockSession) OnToolCall(fn func(call ToolCall)) { m.onToolCall = fn }
func (m *MockSession) OnInterrupted(fn func())           { m.onInterrupted = fn }
func (m *MockSession) OnClosed(fn func())                { m.onClosed = fn }
func (m *MockSession) OnError(fn func(err error))        { m.onError = fn }

// Test drivers.

// EmitAudio delivers a synthesized audio chunk.
func (m *MockSession) EmitAudio(pcm16 []byte) {
	if m.onAudioOut != nil {
		m.onAudioOut(pcm16)
	}
}

// EmitTranscript delivers a transcript event.
func (m *MockSession) EmitTranscript(speaker, text string, isFinal bool) {
	if m.onTranscript != nil {
		m.onTranscript(speaker, text, isFinal)
	}
}

// EmitToolCall delivers a tool call request.
func (m *MockSession) EmitToolCall(call ToolCall) {
	if m.onToolCall != nil {
		m.onToolCall(call)
	}
}

// EmitInterrupted delivers a barge-in event.
func (m *MockSession) EmitInterrupted() {
	if m.onInterrupted != nil {
		m.onInterrupted()
	}
}

// EmitClosed delivers a remote close.
func (m *MockSession) EmitClosed() {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	if m.onClosed != nil {
		m.onClosed()
	}
}

// EmitError delivers a transport error.
func (m *MockSession) EmitError(err error) {
	if m.onError != nil {
		m.onError(err)
	}
}

// Starts returns how many times Start was called.
func (m *MockSession) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Sent returns all frames sent so far.
func (m *MockSession) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	copy(out, m.sent)
	return out
}

// Results returns all submitted tool results by call ID.
func (m *MockSession) Results() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.results))
	for k, v := range m.results {
		out[k] = v
	}
	return out
}

// Ensure MockSession implements Session at compile time.
var _ Session = (*MockSession)(nil)
