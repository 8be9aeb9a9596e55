// Package voice provides the real-time transport session to the
// conversational voice backend. It abstracts the websocket-based audio
// streaming, transcription events, and tool-call protocol behind a
// Session interface.
//
// Example usage:
//
//	sess, err := voice.New(voice.DefaultConfig().
//	    WithAPIKey(os.Getenv("GOOGLE_API_KEY")).
//	    WithSystemPrompt(prompt))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sess.OnAudioOut(func(pcm16 []byte) {
//	    // Schedule for playback
//	})
//	sess.OnToolCall(func(call voice.ToolCall) {
//	    result := handle(call)
//	    sess.SubmitToolResult(call.ID, result)
//	})
//
//	if err := sess.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.Stop()
package voice

import (
	"context"
	"errors"
)

// Session is one authenticated streaming connection to the voice
// backend. Callbacks must be registered before Start; inbound events
// are delivered one at a time, in arrival order, from a single reader
// goroutine.
type Session interface {
	// Lifecycle

	// Start establishes the connection and begins processing.
	// Call this after registering callbacks.
	Start(ctx context.Context) error

	// Stop tears the connection down. Idempotent: safe to call
	// multiple times or when the session never successfully opened.
	Stop() error

	// IsConnected returns true if the session is connected and ready.
	IsConnected() bool

	// Audio I/O

	// SendAudio sends a PCM16 mono audio frame to the backend.
	// Frames sent while the session is not open return ErrNotConnected
	// and are dropped; SendAudio never blocks the capture loop.
	SendAudio(pcm16 []byte) error

	// OnAudioOut sets the callback for synthesized speech chunks.
	// Audio is PCM16 mono at the configured output sample rate.
	OnAudioOut(fn func(pcm16 []byte))

	// Events

	// OnTranscript sets the callback for transcript events.
	// speaker is "user" or "agent"; isFinal marks a complete,
	// non-revisable utterance.
	OnTranscript(fn func(speaker, text string, isFinal bool))

	// OnToolCall sets the callback for backend-initiated tool calls.
	// Every call must be answered via SubmitToolResult.
	OnToolCall(fn func(call ToolCall))

	// OnInterrupted sets the callback for barge-in: the backend
	// detected the user speaking over the agent. Pending playback
	// must be discarded.
	OnInterrupted(fn func())

	// OnClosed sets the callback for a remote close.
	OnClosed(fn func())

	// OnError sets the callback for transport errors.
	OnError(fn func(err error))

	// Tools

	// SubmitToolResult returns a tool call result to the backend.
	SubmitToolResult(callID string, result string) error

	// Config returns the session configuration.
	Config() Config
}

// SessionFactory is a function that creates a Session.
type SessionFactory func(cfg Config) (Session, error)

// factory holds the registered backend factory.
var factory SessionFactory

// Register sets the session factory.
// This is called by the bundled Gemini Live implementation in init().
func Register(f SessionFactory) {
	factory = f
}

// New creates a new Session with the given configuration.
// Returns an error if the config is invalid or no factory is registered.
func New(cfg Config) (Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if factory == nil {
		return nil, errors.New("voice: no session implementation registered")
	}

	return factory(cfg)
}

// Callbacks groups all session callbacks for convenience.
type Callbacks struct {
	OnAudioOut    func(pcm16 []byte)
	OnTranscript  func(speaker, text string, isFinal bool)
	OnToolCall    func(call ToolCall)
	OnInterrupted func()
	OnClosed      func()
	OnError       func(err error)
}

// Apply sets all non-nil callbacks on a session.
func (c *Callbacks) Apply(s Session) {
	if c.OnAudioOut != nil {
		s.OnAudioOut(c.OnAudioOut)
	}
	if c.OnTranscript != nil {
		s.OnTranscript(c.OnTranscript)
	}
	if c.OnToolCall != nil {
		s.OnToolCall(c.OnToolCall)
	}
	if c.OnInterrupted != nil {
		s.OnInterrupted(c.OnInterrupted)
	}
	if c.OnClosed != nil {
		s.OnClosed(c.OnClosed)
	}
	if c.OnError != nil {
		s.OnError(c.OnError)
	}
}
