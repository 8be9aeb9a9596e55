// Package agent orchestrates one voice call at a time: the session
// lifecycle state machine, the capture/playback wiring, the transcript
// and persona projection, and the tool-call hand-off to dispatch.
package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gtahvac/dispatch-voice/internal/log"
	"github.com/gtahvac/dispatch-voice/pkg/audioio"
	"github.com/gtahvac/dispatch-voice/pkg/dispatch"
	"github.com/gtahvac/dispatch-voice/pkg/transcript"
	"github.com/gtahvac/dispatch-voice/pkg/voice"
)

// Status is the call lifecycle state shown in the UI.
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusActive
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "IDLE"
	case StatusConnecting:
		return "CONNECTING"
	case StatusActive:
		return "ACTIVE"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// User-facing failure messages. Raw error detail goes to the log only.
const (
	msgMicDenied   = "Microphone access is required."
	msgMicMissing  = "No microphone found."
	msgStartFailed = "Could not start call."
	msgConnLost    = "Connection failed."
)

// Snapshot is the point-in-time UI projection of the controller.
type Snapshot struct {
	Status     string            `json:"status"`
	Message    string            `json:"message,omitempty"`
	Persona    string            `json:"persona"`
	Volume     float64           `json:"volume"`
	Muted      bool              `json:"muted"`
	Transcript []transcript.Item `json:"transcript"`
	Live       string            `json:"live,omitempty"`
}

// Config wires the controller's collaborators.
type Config struct {
	// Voice is the session configuration template. Prompt, greeting,
	// and tool declaration are filled in if empty.
	Voice voice.Config

	// Source captures caller audio; it is started and stopped per
	// call. Player schedules agent audio and runs for the process
	// lifetime: the caller starts it once, the controller only
	// enqueues and resets.
	Source audioio.Source
	Player *audioio.Player
	Meter  *audioio.Meter

	// Dispatcher answers record_dispatch tool calls.
	Dispatcher *dispatch.Dispatcher

	// PlaybackRate is the sink's sample rate. Backend audio at a
	// different rate is resampled before scheduling; 0 means the
	// backend's output rate is played as-is.
	PlaybackRate int

	// HistorySize bounds the transcript window; 0 means default.
	HistorySize int
}

// Controller runs at most one voice session at a time.
type Controller struct {
	cfg        Config
	history    *transcript.History
	dispatcher *dispatch.Dispatcher

	// newSession is voice.New, injectable for tests.
	newSession voice.SessionFactory

	mu       sync.Mutex
	status   Status
	message  string
	persona  transcript.Persona
	muted    bool
	live     string
	sess     voice.Session
	cancel   context.CancelFunc
	callID   string
	onChange func(Snapshot)
}

// NewController creates a controller in the IDLE state.
func NewController(cfg Config) *Controller {
	if cfg.Voice.SystemPrompt == "" {
		cfg.Voice.SystemPrompt = SystemInstruction
	}
	if cfg.Voice.Greeting == "" {
		cfg.Voice.Greeting = Greeting
	}
	if len(cfg.Voice.Tools) == 0 {
		cfg.Voice.Tools = []voice.Tool{DispatchTool()}
	}

	return &Controller{
		cfg:        cfg,
		history:    transcript.NewHistory(cfg.HistorySize),
		dispatcher: cfg.Dispatcher,
		newSession: voice.New,
		persona:    transcript.PersonaService,
		status:     StatusIdle,
	}
}

// OnChange registers a callback fired after every state transition with
// the fresh snapshot. Used by the web layer to push updates.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Start opens a call. No-op when a call is already connecting or
// active; starting again from ERROR is allowed and clears the message.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.status == StatusConnecting || c.status == StatusActive {
		c.mu.Unlock()
		return nil
	}
	c.status = StatusConnecting
	c.message = ""
	c.persona = transcript.PersonaService
	c.live = ""
	c.callID = uuid.NewString()
	callID := c.callID
	c.history.Clear()
	c.mu.Unlock()
	c.notify()

	log.Info("call connecting", "call", callID)

	sess, err := c.newSession(c.cfg.Voice)
	if err != nil {
		return c.failStart(callID, msgStartFailed, err)
	}

	c.registerCallbacks(sess)

	// Mic access first: the most common failure, surfaced before any
	// network work happens.
	if err := c.cfg.Source.Start(ctx); err != nil {
		switch {
		case errors.Is(err, audioio.ErrPermissionDenied):
			return c.failStart(callID, msgMicDenied, err)
		case errors.Is(err, audioio.ErrDeviceNotFound):
			return c.failStart(callID, msgMicMissing, err)
		default:
			return c.failStart(callID, msgStartFailed, err)
		}
	}

	if err := sess.Start(ctx); err != nil {
		c.cfg.Source.Stop()
		return c.failStart(callID, msgStartFailed, err)
	}

	pumpCtx, cancel := context.WithCancel(ctx)

	// Commit only if this is still the current call: a Stop issued
	// while we were connecting already tore the state down, and a
	// superseded start must not bring its session live.
	c.mu.Lock()
	if c.status != StatusConnecting || c.callID != callID {
		c.mu.Unlock()
		cancel()
		if err := sess.Stop(); err != nil {
			log.Warn("session stop", "call", callID, "error", err)
		}
		if err := c.cfg.Source.Stop(); err != nil {
			log.Warn("source stop", "call", callID, "error", err)
		}
		log.Info("call superseded before activation", "call", callID)
		return nil
	}
	c.sess = sess
	c.cancel = cancel
	c.status = StatusActive
	c.mu.Unlock()
	c.notify()

	go c.pump(pumpCtx, sess)

	log.Info("call active", "call", callID)
	return nil
}

// Stop ends the call and returns to IDLE. Idempotent.
func (c *Controller) Stop() {
	c.teardown(StatusIdle, "")
}

// ToggleMute flips the mute flag and returns the new state. Muting
// stops caller audio from reaching the backend; the session stays up.
func (c *Controller) ToggleMute() bool {
	c.mu.Lock()
	c.muted = !c.muted
	muted := c.muted
	c.mu.Unlock()
	c.notify()
	return muted
}

// Snapshot returns the current UI projection.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	items := c.history.Items()
	live := c.live
	if live == "" && len(items) > 0 {
		live = items[len(items)-1].Text
	}
	return Snapshot{
		Status:     c.status.String(),
		Message:    c.message,
		Persona:    string(c.persona),
		Volume:     c.cfg.Meter.Level(),
		Muted:      c.muted,
		Transcript: items,
		Live:       live,
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onChange
	snap := c.snapshotLocked()
	c.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

func (c *Controller) failStart(callID, msg string, err error) error {
	log.Error("call start failed", "call", callID, "error", err)
	c.mu.Lock()
	if c.callID != callID {
		// A Stop already superseded this start; leave its state alone.
		c.mu.Unlock()
		return err
	}
	c.status = StatusError
	c.message = msg
	c.sess = nil
	c.mu.Unlock()
	c.notify()
	return err
}

// teardown releases the session and audio path and lands in the given
// status. Safe to call from event callbacks and from Stop.
func (c *Controller) teardown(status Status, msg string) {
	c.mu.Lock()
	if c.status == StatusIdle && status == StatusIdle {
		c.mu.Unlock()
		return
	}
	sess := c.sess
	cancel := c.cancel
	callID := c.callID
	c.sess = nil
	c.cancel = nil
	c.callID = ""
	c.status = status
	c.message = msg
	c.persona = transcript.PersonaService
	c.live = ""
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sess != nil {
		if err := sess.Stop(); err != nil {
			log.Warn("session stop", "call", callID, "error", err)
		}
	}
	if err := c.cfg.Source.Stop(); err != nil {
		log.Warn("source stop", "call", callID, "error", err)
	}
	c.cfg.Player.Reset()
	c.cfg.Meter.Reset()
	c.history.Clear()
	c.notify()

	log.Info("call ended", "call", callID, "status", status.String())
}

// pump streams caller audio to the backend until the call ends.
// Frames are skipped while muted and dropped when the session is not
// accepting them; capture never blocks on the network.
func (c *Controller) pump(ctx context.Context, sess voice.Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-c.cfg.Source.Stream():
			if !ok {
				return
			}
			c.mu.Lock()
			muted := c.muted
			c.mu.Unlock()
			if muted {
				continue
			}
			if err := sess.SendAudio(chunk.Bytes()); err != nil {
				if errors.Is(err, voice.ErrNotConnected) {
					continue
				}
				log.Warn("send audio", "error", err)
			}
		}
	}
}

func (c *Controller) registerCallbacks(sess voice.Session) {
	cb := voice.Callbacks{
		OnAudioOut: func(pcm16 []byte) {
			rate := c.cfg.Voice.OutputSampleRate
			if c.cfg.PlaybackRate != 0 && c.cfg.PlaybackRate != rate {
				pcm16 = audioio.ResampleBytes(pcm16, rate, c.cfg.PlaybackRate)
				rate = c.cfg.PlaybackRate
			}
			var chunk audioio.AudioChunk
			chunk.FromBytes(pcm16, rate, 1)
			c.cfg.Player.Enqueue(chunk)
		},
		OnTranscript:  c.handleTranscript,
		OnToolCall:    c.handleToolCall,
		OnInterrupted: c.handleInterrupted,
		OnClosed: func() {
			c.teardown(StatusIdle, "")
		},
		OnError: func(err error) {
			log.Error("session error", "error", err)
			c.teardown(StatusError, msgConnLost)
		},
	}
	cb.Apply(sess)
}

// handleTranscript folds transcript events into the display state.
// Finals enter the history and drive the persona; agent partials only
// update the live line.
func (c *Controller) handleTranscript(speaker, text string, isFinal bool) {
	sp := transcript.Speaker(speaker)

	c.mu.Lock()
	if !isFinal {
		if sp == transcript.SpeakerAgent {
			c.live = text
		}
		c.mu.Unlock()
		c.notify()
		return
	}

	c.history.Append(transcript.Item{
		Speaker:   sp,
		Text:      text,
		Timestamp: time.Now(),
	})
	c.live = ""
	c.persona = transcript.Classify(c.persona, sp, text)
	c.mu.Unlock()
	c.notify()
}

// handleToolCall answers the call synchronously so the backend's
// conversation flow never stalls; the dispatcher does its delivery in
// the background.
func (c *Controller) handleToolCall(call voice.ToolCall) {
	result := c.dispatcher.Handle(call)

	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return
	}
	if err := sess.SubmitToolResult(call.ID, result); err != nil {
		log.Warn("tool result submit", "id", call.ID, "error", err)
	}
}

// handleInterrupted discards scheduled playback on barge-in.
func (c *Controller) handleInterrupted() {
	c.cfg.Player.Reset()
	c.cfg.Meter.Reset()
	c.mu.Lock()
	c.live = ""
	c.mu.Unlock()
	c.notify()
}
