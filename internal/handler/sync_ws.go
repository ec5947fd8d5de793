package handler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"tabletop-backend/internal/constants"
	"tabletop-backend/internal/service"
)

// StreamFrame message written on the sync stream
type StreamFrame struct {
	Type    string                `json:"type"` // snapshot, error
	Payload *service.SyncSnapshot `json:"payload,omitempty"`
	Message string                `json:"message,omitempty"`
}

// SyncStreamHandler serves the sync snapshot over a websocket on a fixed
// interval. It is the server-side twin of the polling client.
type SyncStreamHandler struct {
	svc      *service.GameService
	interval time.Duration
	log      *zap.Logger
}

// NewSyncStreamHandler SyncStreamHandler constructor
func NewSyncStreamHandler(svc *service.GameService, interval time.Duration, log *zap.Logger) *SyncStreamHandler {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SyncStreamHandler{svc: svc, interval: interval, log: log.Named("sync_stream")}
}

// HandleWebSocket runs one stream until the client disconnects or the game
// disappears. Locals are set by middleware.WebSocketAuth.
func (h *SyncStreamHandler) HandleWebSocket(c *websocket.Conn) {
	gameID, ok1 := c.Locals("gameID").(string)
	userID, ok2 := c.Locals("userId").(string)
	username, _ := c.Locals("username").(string)
	role, _ := c.Locals("role").(string)

	if !ok1 || !ok2 || gameID == "" || userID == "" {
		h.writeFrame(c, StreamFrame{Type: "error", Message: "Invalid session"})
		c.Close()
		return
	}
	caller := service.Caller{UserID: userID, Username: username, Role: role}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.log.Debug("stream opened", zap.String("game_id", gameID), zap.String("user_id", userID))
	defer func() {
		c.Close()
		h.log.Debug("stream closed", zap.String("game_id", gameID), zap.String("user_id", userID))
	}()

	// Inbound frames are ignored; a read error means the client went away.
	go func() {
		defer cancel()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		if !h.push(ctx, c, caller, gameID) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// push writes one frame and reports whether the stream should continue.
func (h *SyncStreamHandler) push(ctx context.Context, c *websocket.Conn, caller service.Caller, gameID string) bool {
	snap, err := h.svc.Sync(ctx, caller, gameID)
	switch {
	case errors.Is(err, service.ErrNotFound):
		h.writeFrame(c, StreamFrame{Type: "error", Message: "Game not found"})
		return false
	case err != nil:
		if ctx.Err() != nil {
			return false
		}
		// the next tick retries
		h.log.Warn("stream sync failed", zap.String("game_id", gameID), zap.Error(err))
		return h.writeFrame(c, StreamFrame{Type: "error", Message: "Internal server error"})
	}
	return h.writeFrame(c, StreamFrame{Type: "snapshot", Payload: snap})
}

func (h *SyncStreamHandler) writeFrame(c *websocket.Conn, frame StreamFrame) bool {
	data, err := json.Marshal(frame)
	if err != nil {
		h.log.Error("encode frame", zap.Error(err))
		return false
	}
	_ = c.SetWriteDeadline(time.Now().Add(constants.WSWriteTimeout * time.Millisecond))
	if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
		return false
	}
	return true
}
