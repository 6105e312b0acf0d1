package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"tip-gate-backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const wsWriteTimeout = 5 * time.Second

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp,omitempty"`
	ImageID   string `json:"image_id,omitempty"`
	Status    string `json:"status,omitempty"`
	Message   string `json:"message,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHub manages WebSocket connections keyed by viewer fid
type WSHub struct {
	mu          sync.RWMutex
	connections map[string]*wsClient
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		connections: make(map[string]*wsClient),
	}
}

// Register registers a new WebSocket connection for a viewer
func (h *WSHub) Register(fid string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Close existing connection if any
	if existing, exists := h.connections[fid]; exists {
		existing.conn.Close()
	}

	h.connections[fid] = &wsClient{conn: conn}

	log.Info().Str("fid", fid).Msg("WebSocket connection registered")
}

// Unregister removes the WebSocket connection of a viewer if it is still conn
func (h *WSHub) Unregister(fid string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client, exists := h.connections[fid]; exists && client.conn == conn {
		client.conn.Close()
		delete(h.connections, fid)
		log.Info().Str("fid", fid).Msg("WebSocket connection unregistered")
	}
}

// SendToUser sends a message to a specific viewer
func (h *WSHub) SendToUser(fid string, message WSMessage) error {
	h.mu.RLock()
	client, exists := h.connections[fid]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("viewer %s is not connected", fid)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := client.write(data); err != nil {
		h.Unregister(fid, client.conn)
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// IsOnline checks if a viewer is connected
func (h *WSHub) IsOnline(fid string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.connections[fid]
	return exists
}

// ViewerStatusChanged pushes a validation result to the viewer, if connected
func (h *WSHub) ViewerStatusChanged(_ context.Context, change StatusChange) {
	if !h.IsOnline(change.ViewerFID) {
		return
	}

	message := WSMessage{
		Type:      "viewer_status",
		Timestamp: time.Now().UnixMilli(),
		ImageID:   change.ImageID,
		Status:    string(change.Status),
	}
	if change.Status.IsTerminal() && change.Status != models.StatusValid {
		message.Message = rejectionMessage(change.Status)
	}

	if err := h.SendToUser(change.ViewerFID, message); err != nil {
		log.Error().
			Err(err).
			Str("fid", change.ViewerFID).
			Str("image_id", change.ImageID).
			Msg("Failed to push viewer status")
	}
}
