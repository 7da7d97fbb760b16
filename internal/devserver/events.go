package devserver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const heartbeatInterval = 30 * time.Second

var heartbeat, _ = json.Marshal(map[string]string{"type": "heartbeat"})

// handleEvents upgrades to a websocket that relays every optimizer event as
// one JSON text message.
func (s *Server) handleEvents(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(s.streamEvents)(c)
}

func (s *Server) streamEvents(c *websocket.Conn) {
	connectionID := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := s.events.Subscribe(ctx, s.channel)
	if err != nil {
		log.Error().Err(err).Str("connection_id", connectionID).Msg("Failed to subscribe to events")
		return
	}
	log.Debug().Str("connection_id", connectionID).Msg("Event stream connected")
	defer log.Debug().Str("connection_id", connectionID).Msg("Event stream disconnected")

	// Clients only listen; reading is how a close is noticed.
	go func() {
		defer cancel()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Warn().Err(err).Str("connection_id", connectionID).Msg("Event stream closed unexpectedly")
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.WriteMessage(websocket.TextMessage, heartbeat); err != nil {
				log.Error().Err(err).Str("connection_id", connectionID).Msg("Heartbeat failed")
				return
			}
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, msg.Payload); err != nil {
				log.Debug().Err(err).Str("connection_id", connectionID).Msg("Failed to relay event")
				return
			}
		}
	}
}
