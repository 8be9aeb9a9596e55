// Package bundled provides the Gemini Live implementation of
// voice.Session. Importing it registers the factory:
//
//	import _ "github.com/gtahvac/dispatch-voice/pkg/voice/bundled"
package bundled

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/gtahvac/dispatch-voice/internal/log"
	"github.com/gtahvac/dispatch-voice/pkg/voice"
)

// Gemini Live API WebSocket endpoint.
const geminiLiveURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

// Gemini implements voice.Session using Google's Gemini Live API.
// A single websocket carries both directions: base64 PCM16 audio up,
// synthesized speech, transcription, and tool calls down.
type Gemini struct {
	config voice.Config

	// url is the dial target; overridable in tests.
	url string

	// issuer mints short-lived tokens when config.TokenURL is set.
	issuer voice.TokenIssuer

	// WebSocket connection. wsMu serializes writes; reads happen on
	// the single handleMessages goroutine.
	ws   *websocket.Conn
	wsMu sync.Mutex

	// Session state
	mu        sync.RWMutex
	connected bool
	closed    bool
	ctx       context.Context
	cancel    context.CancelFunc

	// Agent transcription fragments accumulate here until the turn
	// completes; the joined text is the final transcript.
	agentTurn strings.Builder

	// Callbacks. Registered before Start; invoked from the reader
	// goroutine only, so events are handled one at a time in order.
	onAudioOut    func(pcm16 []byte)
	onTranscript  func(speaker, text string, isFinal bool)
	onToolCall    func(call voice.ToolCall)
	onInterrupted func()
	onClosed      func()
	onError       func(err error)
}

// NewGemini creates a new Gemini Live session.
func NewGemini(cfg voice.Config) (*Gemini, error) {
	if cfg.APIKey == "" && cfg.TokenURL == "" {
		return nil, voice.ErrMissingCredentials
	}

	g := &Gemini{
		config: cfg,
		url:    geminiLiveURL,
	}
	if cfg.TokenURL != "" {
		g.issuer = &voice.HTTPTokenIssuer{URL: cfg.TokenURL}
	}
	return g, nil
}

// Start establishes the WebSocket connection and begins processing.
func (g *Gemini) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.connected {
		g.mu.Unlock()
		return voice.ErrAlreadyStarted
	}
	g.mu.Unlock()

	g.ctx, g.cancel = context.WithCancel(ctx)

	url, err := g.dialURL(ctx)
	if err != nil {
		g.cancel()
		return err
	}

	header := make(http.Header)
	header.Set("Content-Type", "application/json")

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	ws, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		g.cancel()
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return &voice.AuthError{StatusCode: resp.StatusCode, Cause: err}
		}
		return &voice.NetworkError{Cause: err}
	}
	g.ws = ws

	g.mu.Lock()
	g.connected = true
	g.closed = false
	g.agentTurn.Reset()
	g.mu.Unlock()

	if err := g.sendSetup(); err != nil {
		g.Stop()
		return &voice.ProtocolError{Reason: "session setup rejected", Cause: err}
	}

	go g.handleMessages()

	if g.config.Debug {
		log.Debug("gemini live connected", "model", g.config.Model)
	}

	return nil
}

// dialURL builds the endpoint URL with either a freshly issued token
// or the configured API key.
func (g *Gemini) dialURL(ctx context.Context) (string, error) {
	if g.issuer != nil {
		token, err := g.issuer.Issue(ctx, "dispatch-demo", uuid.NewString())
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s?access_token=%s", g.url, token), nil
	}
	return fmt.Sprintf("%s?key=%s", g.url, g.config.APIKey), nil
}

// sendSetup sends the initial configuration to Gemini Live.
func (g *Gemini) sendSetup() error {
	model := g.config.Model
	if model == "" {
		model = voice.DefaultModel
	}
	voiceName := g.config.Voice
	if voiceName == "" {
		voiceName = voice.DefaultVoice
	}

	setup := map[string]any{
		"model": model,
		"generation_config": map[string]any{
			"response_modalities": []string{"AUDIO"},
			"speech_config": map[string]any{
				"voice_config": map[string]any{
					"prebuilt_voice_config": map[string]any{
						"voice_name": voiceName,
					},
				},
			},
		},
	}

	if g.config.SystemPrompt != "" {
		setup["system_instruction"] = map[string]any{
			"parts": []map[string]any{
				{"text": g.config.SystemPrompt},
			},
		}
	}

	if g.config.EnableInputTranscription {
		setup["input_audio_transcription"] = map[string]any{}
	}
	if g.config.EnableOutputTranscription {
		setup["output_audio_transcription"] = map[string]any{}
	}

	if len(g.config.Tools) > 0 {
		var decls []map[string]any
		for _, tool := range g.config.Tools {
			decls = append(decls, map[string]any{
				"name":        tool.Name,
				"description": tool.Description,
				"parameters":  tool.Parameters,
			})
		}
		setup["tools"] = []map[string]any{
			{"function_declarations": decls},
		}
	}

	return g.sendJSON(map[string]any{"setup": setup})
}

// sendGreeting nudges the agent to open with the configured line.
func (g *Gemini) sendGreeting() error {
	if g.config.Greeting == "" {
		return nil
	}
	msg := map[string]any{
		"client_content": map[string]any{
			"turns": []map[string]any{
				{
					"role": "user",
					"parts": []map[string]any{
						{"text": "Greet me with exactly: " + g.config.Greeting},
					},
				},
			},
			"turn_complete": true,
		},
	}
	return g.sendJSON(msg)
}

// Stop tears down the connection. Idempotent.
func (g *Gemini) Stop() error {
	g.mu.Lock()
	wasClosed := g.closed
	g.closed = true
	g.connected = false
	g.mu.Unlock()

	if wasClosed {
		return nil
	}

	if g.cancel != nil {
		g.cancel()
	}

	if g.ws != nil {
		return g.ws.Close()
	}
	return nil
}

// IsConnected returns true if connected and ready.
func (g *Gemini) IsConnected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connected && !g.closed
}

// SendAudio sends a PCM16 mono frame to the backend.
// Frames sent while not connected are dropped with ErrNotConnected;
// this never blocks the capture loop.
func (g *Gemini) SendAudio(pcm16 []byte) error {
	g.mu.RLock()
	if !g.connected || g.closed {
		g.mu.RUnlock()
		return voice.ErrNotConnected
	}
	g.mu.RUnlock()

	encoded := base64.StdEncoding.EncodeToString(pcm16)

	msg := map[string]any{
		"realtime_input": map[string]any{
			"media_chunks": []map[string]any{
				{
					"data":      encoded,
					"mime_type": fmt.Sprintf("audio/pcm;rate=%d", g.config.InputSampleRate),
				},
			},
		},
	}

	return g.sendJSON(msg)
}

// SubmitToolResult returns a tool result to the backend.
func (g *Gemini) SubmitToolResult(callID, result string) error {
	msg := map[string]any{
		"tool_response": map[string]any{
			"function_responses": []map[string]any{
				{
					"id":       callID,
					"response": map[string]any{"result": result},
				},
			},
		},
	}

	return g.sendJSON(msg)
}

// Config returns the session configuration.
func (g *Gemini) Config() voice.Config {
	return g.config
}

// Callback setters. Register before Start.

func (g *Gemini) OnAudioOut(fn func(pcm16 []byte)) { g.onAudioOut = fn }
func (g *Gemini) OnTranscript(fn func(speaker, text string, isFinal bool)) {
	g.onTranscript = fn
}
func (g *Gemini) OnToolCall(fn func(call voice.ToolCall)) { g.onToolCall = fn }
func (g *Gemini) OnInterrupted(fn func())                 { g.onInterrupted = fn }
func (g *Gemini) OnClosed(fn func())                      { g.onClosed = fn }
func (g *Gemini) OnError(fn func(err error))              { g.onError = fn }

// handleMessages processes incoming WebSocket messages. It is the only
// reader; every inbound event is handled here, one at a time, in
// arrival order.
func (g *Gemini) handleMessages() {
	for {
		g.mu.RLock()
		closed := g.closed
		g.mu.RUnlock()

		if closed {
			return
		}

		_, message, err := g.ws.ReadMessage()
		if err != nil {
			g.mu.RLock()
			closed := g.closed
			g.mu.RUnlock()
			if closed {
				return
			}

			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				if g.onClosed != nil {
					g.onClosed()
				}
			} else if g.onError != nil {
				g.onError(&voice.NetworkError{Cause: err})
			}
			return
		}

		var msg map[string]any
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Warn("gemini: unparseable message", "error", err)
			continue
		}

		g.handleMessage(msg)
	}
}

// handleMessage processes a single Gemini Live message.
func (g *Gemini) handleMessage(msg map[string]any) {
	if _, ok := msg["setupComplete"]; ok {
		if g.config.Debug {
			log.Debug("gemini live session ready")
		}
		if err := g.sendGreeting(); err != nil {
			log.Warn("gemini: greeting send failed", "error", err)
		}
		return
	}

	if serverContent, ok := msg["serverContent"].(map[string]any); ok {
		g.handleServerContent(serverContent)
		return
	}

	if toolCall, ok := msg["toolCall"].(map[string]any); ok {
		g.handleToolCall(toolCall)
		return
	}

	if _, ok := msg["toolCallCancellation"]; ok {
		if g.config.Debug {
			log.Debug("gemini: tool call cancelled")
		}
		return
	}

	if g.config.Debug {
		log.Debug("gemini: unhandled message", "msg", msg)
	}
}

// handleServerContent processes audio, transcription, and turn events.
func (g *Gemini) handleServerContent(content map[string]any) {
	// Barge-in: the user spoke over the agent. Discard the pending
	// agent turn; the controller discards scheduled playback.
	if interrupted, ok := content["interrupted"].(bool); ok && interrupted {
		g.agentTurn.Reset()
		if g.onInterrupted != nil {
			g.onInterrupted()
		}
		return
	}

	// Turn complete: the accumulated agent transcription becomes the
	// final utterance.
	if turnComplete, ok := content["turnComplete"].(bool); ok && turnComplete {
		text := strings.TrimSpace(g.agentTurn.String())
		g.agentTurn.Reset()
		if text != "" && g.onTranscript != nil {
			g.onTranscript("agent", text, true)
		}
		return
	}

	// Synthesized speech chunks.
	if modelTurn, ok := content["modelTurn"].(map[string]any); ok {
		if parts, ok := modelTurn["parts"].([]any); ok {
			for _, part := range parts {
				partMap, ok := part.(map[string]any)
				if !ok {
					continue
				}

				inlineData, ok := partMap["inlineData"].(map[string]any)
				if !ok {
					continue
				}
				mimeType, _ := inlineData["mimeType"].(string)
				if !strings.HasPrefix(mimeType, "audio/pcm") {
					continue
				}
				data, ok := inlineData["data"].(string)
				if !ok {
					continue
				}
				audioData, err := base64.StdEncoding.DecodeString(data)
				if err == nil && len(audioData) > 0 && g.onAudioOut != nil {
					g.onAudioOut(audioData)
				}
			}
		}
	}

	// What the user said. Delivered per utterance; final as received.
	if inputTranscript, ok := content["inputTranscription"].(map[string]any); ok {
		if text, ok := inputTranscript["text"].(string); ok && text != "" {
			if g.onTranscript != nil {
				g.onTranscript("user", text, true)
			}
		}
	}

	// What the agent is saying, in fragments. Surface each fragment
	// as a partial; the joined turn finalizes on turnComplete.
	if outputTranscript, ok := content["outputTranscription"].(map[string]any); ok {
		if text, ok := outputTranscript["text"].(string); ok && text != "" {
			g.agentTurn.WriteString(text)
			if g.onTranscript != nil {
				g.onTranscript("agent", strings.TrimSpace(g.agentTurn.String()), false)
			}
		}
	}
}

// handleToolCall processes function calls from the backend.
func (g *Gemini) handleToolCall(toolCall map[string]any) {
	functionCalls, ok := toolCall["functionCalls"].([]any)
	if !ok {
		return
	}

	for _, fc := range functionCalls {
		fcMap, ok := fc.(map[string]any)
		if !ok {
			continue
		}

		name, _ := fcMap["name"].(string)
		id, _ := fcMap["id"].(string)
		args, _ := fcMap["args"].(map[string]any)

		if g.config.Debug {
			log.Debug("gemini tool call", "name", name, "id", id)
		}

		if g.onToolCall != nil {
			g.onToolCall(voice.ToolCall{
				ID:        id,
				Name:      name,
				Arguments: args,
			})
		} else {
			// No handler wired: answer anyway so the backend's
			// conversation flow is never left waiting.
			if err := g.SubmitToolResult(id, "unhandled"); err != nil && g.onError != nil {
				g.onError(err)
			}
		}
	}
}

// sendJSON sends a JSON message over the WebSocket.
func (g *Gemini) sendJSON(v any) error {
	g.wsMu.Lock()
	defer g.wsMu.Unlock()

	if g.ws == nil {
		return voice.ErrNotConnected
	}

	return g.ws.WriteJSON(v)
}

// Ensure Gemini implements voice.Session at compile time.
var _ voice.Session = (*Gemini)(nil)

// Register the Gemini Live factory.
func init() {
	voice.Register(func(cfg voice.Config) (voice.Session, error) {
		return NewGemini(cfg)
	})
}
