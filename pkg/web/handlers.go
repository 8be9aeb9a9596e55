package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/gtahvac/dispatch-voice/internal/log"
	"github.com/gtahvac/dispatch-voice/pkg/hub"
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Snapshot())
}

// handleStart opens a call. Doubles as the external "start demo"
// signal: starting while a call is already up is a no-op.
func (s *Server) handleStart(c *fiber.Ctx) error {
	if err := s.ctrl.Start(s.baseCtx); err != nil {
		// The snapshot carries the user-facing message; raw detail is
		// already logged by the controller.
		return c.Status(fiber.StatusBadGateway).JSON(s.ctrl.Snapshot())
	}
	return c.JSON(s.ctrl.Snapshot())
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	s.ctrl.Stop()
	return c.JSON(s.ctrl.Snapshot())
}

func (s *Server) handleMute(c *fiber.Ctx) error {
	muted := s.ctrl.ToggleMute()
	return c.JSON(fiber.Map{"muted": muted})
}

// handleStateWS streams state snapshots. The current snapshot is sent
// on connect so the page renders immediately.
func (s *Server) handleStateWS(conn *websocket.Conn) {
	if err := conn.WriteJSON(s.ctrl.Snapshot()); err != nil {
		conn.Close()
		return
	}
	client := hub.NewClient(s.stateHub, conn)
	client.Run()
}

// handleAudioWS bridges browser audio: binary frames up are caller mic
// data fed into the capture source, broadcasts down are agent audio.
func (s *Server) handleAudioWS(conn *websocket.Conn) {
	client := hub.NewClient(s.audioHub, conn)
	if s.source != nil {
		client.OnMessage(func(messageType int, data []byte) {
			if messageType != websocket.BinaryMessage {
				return
			}
			s.source.Push(data)
		})
	} else {
		log.Warn("audio bridge connected without a capture source")
	}
	client.Run()
}
