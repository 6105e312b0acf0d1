package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"tip-gate-backend/internal/middleware"
	"tip-gate-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // frames are embedded by arbitrary clients
	},
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub    *services.WSHub
	tokens middleware.TokenValidator
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *services.WSHub, tokens middleware.TokenValidator) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		tokens: tokens,
	}
}

// HandleWebSocket handles WebSocket connections
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	fid, err := middleware.ValidateWebSocketToken(r.URL.Query().Get("token"), h.tokens)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}
	viewerFID := fid.String()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.hub.Register(viewerFID, conn)
	defer h.hub.Unregister(viewerFID, conn)

	log.Info().Str("fid", viewerFID).Msg("WebSocket connection established")

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("fid", viewerFID).Msg("WebSocket error")
			}
			break
		}

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Error().Err(err).Str("fid", viewerFID).Msg("Failed to parse WebSocket message")
			h.reply(viewerFID, services.WSMessage{Type: "error", Message: "Invalid message format"})
			continue
		}

		switch msg.Type {
		case "ping":
			h.reply(viewerFID, services.WSMessage{Type: "pong", Timestamp: time.Now().UnixMilli()})
		default:
			h.reply(viewerFID, services.WSMessage{Type: "error", Message: "Unknown message type"})
		}
	}
}

func (h *WebSocketHandler) reply(fid string, msg services.WSMessage) {
	if err := h.hub.SendToUser(fid, msg); err != nil {
		log.Error().Err(err).Str("fid", fid).Str("type", msg.Type).Msg("Failed to send WebSocket message")
	}
}
