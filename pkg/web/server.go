// Package web provides the HTTP control surface and real-time state
// stream for the dispatch demo page.
package web

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/gtahvac/dispatch-voice/internal/log"
	"github.com/gtahvac/dispatch-voice/pkg/agent"
	"github.com/gtahvac/dispatch-voice/pkg/audioio"
	"github.com/gtahvac/dispatch-voice/pkg/hub"
)

// volumePushPeriod paces snapshot broadcasts while a call is active so
// the page's volume visualization animates between state changes.
const volumePushPeriod = 150 * time.Millisecond

// SessionControl is what the server needs from the session controller.
type SessionControl interface {
	Start(ctx context.Context) error
	Stop()
	ToggleMute() bool
	Snapshot() agent.Snapshot
	OnChange(fn func(agent.Snapshot))
}

// Server is the demo's web server: REST control endpoints, the state
// stream, and the browser audio bridge.
type Server struct {
	app  *fiber.App
	port string

	ctrl   SessionControl
	source *audioio.PipeSource

	// baseCtx outlives any single request. A call started over HTTP
	// runs until stopped, so it must not hang off fiber's pooled
	// request context.
	baseCtx context.Context

	// Hubs for websocket broadcast (thread-safe!)
	stateHub *hub.Hub
	audioHub *hub.Hub

	stopOnce sync.Once
	stopPush chan struct{}
}

// NewServer creates the web server. source receives browser mic audio
// pushed over /ws/audio; pass nil when no browser capture is wired.
func NewServer(port string, ctrl SessionControl, source *audioio.PipeSource) *Server {
	s := &Server{
		port:     port,
		ctrl:     ctrl,
		source:   source,
		baseCtx:  context.Background(),
		stateHub: hub.New("state"),
		audioHub: hub.New("audio"),
		stopPush: make(chan struct{}),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Dispatch Voice Demo",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	// CORS for local development
	app.Use(cors.New())

	// Static demo page
	app.Static("/", "./web")

	app.Get("/health", s.handleHealth)

	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Post("/session/start", s.handleStart)
	api.Post("/session/stop", s.handleStop)
	api.Post("/session/mute", s.handleMute)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/state", websocket.New(s.handleStateWS))
	app.Get("/ws/audio", websocket.New(s.handleAudioWS))

	// Push every controller transition to connected pages.
	ctrl.OnChange(func(snap agent.Snapshot) {
		if err := s.stateHub.BroadcastJSON(snap); err != nil {
			log.Warn("state broadcast failed", "error", err)
		}
	})

	s.app = app
	return s
}

// Start runs the server. Blocks until Shutdown.
func (s *Server) Start() error {
	log.Info("web server listening", "port", s.port)

	go s.stateHub.Run()
	go s.audioHub.Run()
	go s.pushVolume()

	return s.app.Listen(":" + s.port)
}

// StartAsync starts the web server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("web server failed", "error", err)
		}
	}()
}

// SendAgentAudio forwards a synthesized audio chunk to connected audio
// bridge clients.
func (s *Server) SendAgentAudio(pcm16 []byte) {
	s.audioHub.BroadcastBinary(pcm16)
}

// Shutdown gracefully stops the web server.
func (s *Server) Shutdown() error {
	s.stopOnce.Do(func() { close(s.stopPush) })
	return s.app.Shutdown()
}

// pushVolume re-broadcasts the snapshot on a short period during
// active calls; the meter level changes without a state transition.
func (s *Server) pushVolume() {
	ticker := time.NewTicker(volumePushPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopPush:
			return
		case <-ticker.C:
			snap := s.ctrl.Snapshot()
			if snap.Status != agent.StatusActive.String() {
				continue
			}
			if s.stateHub.ClientCount() == 0 {
				continue
			}
			if err := s.stateHub.BroadcastJSON(snap); err != nil {
				log.Warn("volume broadcast failed", "error", err)
			}
		}
	}
}
