package bundled

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/gtahvac/dispatch-voice/pkg/voice"
)

// fakeLive is a local stand-in for the Gemini Live endpoint. It answers
// the setup handshake, records every client message, and lets the test
// push server messages down the wire.
type fakeLive struct {
	srv      *httptest.Server
	setup    chan map[string]any
	received chan map[string]any
	send     chan map[string]any
}

func newFakeLive(t *testing.T) *fakeLive {
	t.Helper()

	f := &fakeLive{
		setup:    make(chan map[string]any, 1),
		received: make(chan map[string]any, 16),
		send:     make(chan map[string]any, 16),
	}

	upgrader := websocket.Upgrader{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer ws.Close()

		var setup map[string]any
		if err := ws.ReadJSON(&setup); err != nil {
			return
		}
		f.setup <- setup
		if err := ws.WriteJSON(map[string]any{"setupComplete": map[string]any{}}); err != nil {
			return
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				var msg map[string]any
				if err := ws.ReadJSON(&msg); err != nil {
					return
				}
				f.received <- msg
			}
		}()

		for {
			select {
			case msg := <-f.send:
				if err := ws.WriteJSON(msg); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeLive) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func recv[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

// startSession dials the fake endpoint. Callbacks must be registered in
// configure, before the reader goroutine exists.
func startSession(t *testing.T, f *fakeLive, cfg voice.Config, configure func(g *Gemini)) *Gemini {
	t.Helper()

	g, err := NewGemini(cfg)
	if err != nil {
		t.Fatalf("NewGemini() error = %v", err)
	}
	g.url = f.url()
	if configure != nil {
		configure(g)
	}

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { g.Stop() })
	return g
}

func TestGeminiSetupMessage(t *testing.T) {
	f := newFakeLive(t)

	cfg := voice.DefaultConfig().
		WithAPIKey("test-key").
		WithSystemPrompt("You are Jessica.").
		WithTools(voice.Tool{
			Name:        "record_dispatch",
			Description: "Record a dispatch request",
			Parameters:  map[string]any{"type": "object"},
		})
	startSession(t, f, cfg, nil)

	msg := recv(t, f.setup, "setup message")
	setup, ok := msg["setup"].(map[string]any)
	if !ok {
		t.Fatalf("no setup envelope in %v", msg)
	}
	if setup["model"] != voice.DefaultModel {
		t.Errorf("model = %v, want %v", setup["model"], voice.DefaultModel)
	}
	if _, ok := setup["system_instruction"]; !ok {
		t.Error("setup missing system_instruction")
	}
	if _, ok := setup["input_audio_transcription"]; !ok {
		t.Error("setup missing input_audio_transcription")
	}
	if _, ok := setup["output_audio_transcription"]; !ok {
		t.Error("setup missing output_audio_transcription")
	}
	tools, ok := setup["tools"].([]any)
	if !ok || len(tools) != 1 {
		t.Fatalf("tools = %v, want one declaration group", setup["tools"])
	}
}

func TestGeminiGreetingSentAfterSetup(t *testing.T) {
	f := newFakeLive(t)

	cfg := voice.DefaultConfig().
		WithAPIKey("test-key").
		WithGreeting("Thank you for calling GTA Heating & Air.")
	startSession(t, f, cfg, nil)
	recv(t, f.setup, "setup message")

	msg := recv(t, f.received, "greeting turn")
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(msg)
	raw := buf.Bytes()
	if _, ok := msg["client_content"]; !ok {
		t.Fatalf("first client message = %s, want client_content", raw)
	}
	if !strings.Contains(string(raw), "Thank you for calling GTA Heating & Air.") {
		t.Errorf("greeting text missing from %s", raw)
	}
}

func TestGeminiSendAudio(t *testing.T) {
	f := newFakeLive(t)
	g := startSession(t, f, voice.DefaultConfig().WithAPIKey("test-key"), nil)
	recv(t, f.setup, "setup message")

	frame := []byte{0x01, 0x02, 0x03, 0x04}
	if err := g.SendAudio(frame); err != nil {
		t.Fatalf("SendAudio() error = %v", err)
	}

	msg := recv(t, f.received, "realtime_input")
	input, ok := msg["realtime_input"].(map[string]any)
	if !ok {
		t.Fatalf("message = %v, want realtime_input", msg)
	}
	chunks, _ := input["media_chunks"].([]any)
	if len(chunks) != 1 {
		t.Fatalf("media_chunks = %v, want one chunk", input["media_chunks"])
	}
	chunk := chunks[0].(map[string]any)
	if chunk["mime_type"] != "audio/pcm;rate=16000" {
		t.Errorf("mime_type = %v, want audio/pcm;rate=16000", chunk["mime_type"])
	}
	decoded, err := base64.StdEncoding.DecodeString(chunk["data"].(string))
	if err != nil || string(decoded) != string(frame) {
		t.Errorf("data did not round-trip: %v %v", decoded, err)
	}
}

func TestGeminiSendAudioNotConnected(t *testing.T) {
	g, err := NewGemini(voice.DefaultConfig().WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("NewGemini() error = %v", err)
	}
	if err := g.SendAudio([]byte{0x00}); !errors.Is(err, voice.ErrNotConnected) {
		t.Errorf("SendAudio() = %v, want ErrNotConnected", err)
	}
}

func TestGeminiAudioOut(t *testing.T) {
	f := newFakeLive(t)
	audioCh := make(chan []byte, 1)
	startSession(t, f, voice.DefaultConfig().WithAPIKey("test-key"), func(g *Gemini) {
		g.OnAudioOut(func(pcm16 []byte) { audioCh <- pcm16 })
	})

	pcm := []byte{0x10, 0x20, 0x30, 0x40}
	f.send <- map[string]any{
		"serverContent": map[string]any{
			"modelTurn": map[string]any{
				"parts": []any{
					map[string]any{
						"inlineData": map[string]any{
							"mimeType": "audio/pcm;rate=24000",
							"data":     base64.StdEncoding.EncodeToString(pcm),
						},
					},
				},
			},
		},
	}

	got := recv(t, audioCh, "audio out")
	if string(got) != string(pcm) {
		t.Errorf("audio = %v, want %v", got, pcm)
	}
}

func TestGeminiTranscriptEvents(t *testing.T) {
	f := newFakeLive(t)
	type event struct {
		speaker string
		text    string
		isFinal bool
	}
	events := make(chan event, 8)
	startSession(t, f, voice.DefaultConfig().WithAPIKey("test-key"), func(g *Gemini) {
		g.OnTranscript(func(speaker, text string, isFinal bool) {
			events <- event{speaker, text, isFinal}
		})
	})

	// User utterance arrives whole and final.
	f.send <- map[string]any{
		"serverContent": map[string]any{
			"inputTranscription": map[string]any{"text": "my furnace is broken"},
		},
	}
	got := recv(t, events, "user transcript")
	if got.speaker != "user" || !got.isFinal || got.text != "my furnace is broken" {
		t.Errorf("user event = %+v", got)
	}

	// Agent speech streams in fragments, finalized on turnComplete.
	f.send <- map[string]any{
		"serverContent": map[string]any{
			"outputTranscription": map[string]any{"text": "I can help "},
		},
	}
	f.send <- map[string]any{
		"serverContent": map[string]any{
			"outputTranscription": map[string]any{"text": "with that."},
		},
	}
	f.send <- map[string]any{
		"serverContent": map[string]any{"turnComplete": true},
	}

	partial := recv(t, events, "agent partial")
	if partial.speaker != "agent" || partial.isFinal {
		t.Errorf("first agent event = %+v, want partial", partial)
	}
	partial = recv(t, events, "agent partial")
	if partial.isFinal {
		t.Errorf("second agent event = %+v, want partial", partial)
	}
	final := recv(t, events, "agent final")
	if !final.isFinal || final.text != "I can help with that." {
		t.Errorf("agent final = %+v, want accumulated turn", final)
	}
}

func TestGeminiInterruptedDiscardsAgentTurn(t *testing.T) {
	f := newFakeLive(t)
	type event struct {
		text    string
		isFinal bool
	}
	events := make(chan event, 8)
	interrupted := make(chan struct{}, 1)
	startSession(t, f, voice.DefaultConfig().WithAPIKey("test-key"), func(g *Gemini) {
		g.OnTranscript(func(speaker, text string, isFinal bool) {
			if speaker == "agent" {
				events <- event{text, isFinal}
			}
		})
		g.OnInterrupted(func() { interrupted <- struct{}{} })
	})

	f.send <- map[string]any{
		"serverContent": map[string]any{
			"outputTranscription": map[string]any{"text": "Let me just"},
		},
	}
	recv(t, events, "agent partial")

	f.send <- map[string]any{
		"serverContent": map[string]any{"interrupted": true},
	}
	recv(t, interrupted, "interrupted event")

	// The next turn must not carry the discarded fragment.
	f.send <- map[string]any{
		"serverContent": map[string]any{
			"outputTranscription": map[string]any{"text": "Go ahead."},
		},
	}
	f.send <- map[string]any{
		"serverContent": map[string]any{"turnComplete": true},
	}
	recv(t, events, "agent partial")
	final := recv(t, events, "agent final")
	if final.text != "Go ahead." {
		t.Errorf("final after interrupt = %q, want %q", final.text, "Go ahead.")
	}
}

func TestGeminiToolCallRoundTrip(t *testing.T) {
	f := newFakeLive(t)
	calls := make(chan voice.ToolCall, 1)
	g := startSession(t, f, voice.DefaultConfig().WithAPIKey("test-key"), func(g *Gemini) {
		g.OnToolCall(func(call voice.ToolCall) { calls <- call })
	})
	recv(t, f.setup, "setup message")

	f.send <- map[string]any{
		"toolCall": map[string]any{
			"functionCalls": []any{
				map[string]any{
					"id":   "call-1",
					"name": "record_dispatch",
					"args": map[string]any{"name": "Dana", "urgency": "EMERGENCY"},
				},
			},
		},
	}

	call := recv(t, calls, "tool call")
	if call.ID != "call-1" || call.Name != "record_dispatch" {
		t.Fatalf("call = %+v", call)
	}
	if call.Arguments["urgency"] != "EMERGENCY" {
		t.Errorf("args = %v", call.Arguments)
	}

	if err := g.SubmitToolResult(call.ID, "recorded"); err != nil {
		t.Fatalf("SubmitToolResult() error = %v", err)
	}

	msg := recv(t, f.received, "tool_response")
	resp, ok := msg["tool_response"].(map[string]any)
	if !ok {
		t.Fatalf("message = %v, want tool_response", msg)
	}
	responses, _ := resp["function_responses"].([]any)
	if len(responses) != 1 {
		t.Fatalf("function_responses = %v", resp["function_responses"])
	}
	if responses[0].(map[string]any)["id"] != "call-1" {
		t.Errorf("response id = %v, want call-1", responses[0])
	}
}

func TestGeminiStopIdempotent(t *testing.T) {
	f := newFakeLive(t)
	g := startSession(t, f, voice.DefaultConfig().WithAPIKey("test-key"), nil)

	if !g.IsConnected() {
		t.Fatal("session should be connected after Start")
	}
	if err := g.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := g.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
	if g.IsConnected() {
		t.Error("session should not be connected after Stop")
	}
}

func TestGeminiDialFailureReleasesContext(t *testing.T) {
	g, err := NewGemini(voice.DefaultConfig().WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("NewGemini() error = %v", err)
	}
	// Nothing listens here; the dial fails immediately.
	g.url = "ws://127.0.0.1:1"

	var netErr *voice.NetworkError
	if err := g.Start(context.Background()); !errors.As(err, &netErr) {
		t.Fatalf("Start() error = %v, want NetworkError", err)
	}
	if g.ctx.Err() == nil {
		t.Error("session context still live after failed Start")
	}
}

func TestGeminiRequiresCredentials(t *testing.T) {
	_, err := NewGemini(voice.Config{})
	if !errors.Is(err, voice.ErrMissingCredentials) {
		t.Errorf("NewGemini() = %v, want ErrMissingCredentials", err)
	}
}

func TestGeminiRegistersFactory(t *testing.T) {
	sess, err := voice.New(voice.DefaultConfig().WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("voice.New() error = %v", err)
	}
	if _, ok := sess.(*Gemini); !ok {
		t.Errorf("voice.New() = %T, want *Gemini", sess)
	}
}
