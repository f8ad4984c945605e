package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/vhvplatform/go-delivery-service/internal/realtime"
	apperrors "github.com/vhvplatform/go-delivery-service/internal/shared/errors"
	"github.com/vhvplatform/go-delivery-service/internal/shared/logger"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checks belong to the gateway in front of this service.
	CheckOrigin: func(*http.Request) bool { return true },
}

// WSHandler upgrades connections and attaches them to the realtime hub
type WSHandler struct {
	hub *realtime.Hub
	log *logger.Logger
}

// NewWSHandler creates a new websocket handler
func NewWSHandler(hub *realtime.Hub, log *logger.Logger) *WSHandler {
	return &WSHandler{
		hub: hub,
		log: log,
	}
}

// Connect upgrades the request and streams in-app notifications to the user
func (h *WSHandler) Connect(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, apperrors.NewValidationError("user_id is required", nil))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade websocket", "error", err, "user_id", userID)
		return
	}

	client := realtime.NewClient(userID, conn)
	h.hub.Register(client)
	h.log.Info("Realtime connection opened", "user_id", userID)

	go client.WritePump()
	go h.readPump(client, conn, userID)
}

// readPump discards inbound frames and tears the connection down on error.
// The stream is push-only; reading is just liveness detection.
func (h *WSHandler) readPump(client *realtime.Client, conn *websocket.Conn, userID string) {
	done := make(chan struct{})
	defer func() {
		close(done)
		h.hub.Unregister(client)
		h.log.Info("Realtime connection closed", "user_id", userID)
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// A stopped ticker never fires, so the ping loop must watch done too
	// or it would block on the channel forever.
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
