package websocket

import (
	"log"
	"net/http"
	"strings"

	"goride/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Handler upgrades ops-dashboard HTTP connections into the Hub.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	cfg      *config.WebSocketConfig
}

func NewHandler(cfg *config.WebSocketConfig) *Handler {
	hub := NewHub()
	go hub.Run()

	if cfg == nil {
		cfg = &config.WebSocketConfig{ReadBufferSize: 1024, WriteBufferSize: 1024, PongTimeout: 60 * 1e9}
	}

	allowed := cfg.AllowedOrigins

	return &Handler{
		hub: hub,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    cfg.ReadBufferSize,
			WriteBufferSize:   cfg.WriteBufferSize,
			EnableCompression: cfg.EnableCompression,
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(allowed, r.Header.Get("Origin"))
			},
		},
	}
}

// originAllowed reports whether origin may open an ops websocket, per
// WebSocketConfig.AllowedOrigins (§4.11's operator-facing surface isn't
// meant to be reachable from an arbitrary page). A "*" entry, or an
// empty origin header (non-browser clients), allows any caller.
func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return true
	}
	for _, o := range allowed {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// HandleWebSocket handles GET /ws. operatorId comes from auth
// middleware; campaignId is an optional query param that auto-joins
// the caller to that campaign's event room.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	operatorID, exists := c.Get("subject")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	operatorIDStr, ok := operatorID.(string)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid operator id"})
		return
	}

	campaignID := c.Query("campaignId")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ops websocket upgrade failed: %v", err)
		return
	}

	client := NewClient(h.hub, conn, operatorIDStr, campaignID, h.cfg.PongTimeout, int64(h.cfg.ReadBufferSize))
	h.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// BroadcastCampaignEvent pushes a lifecycle event to the campaign's room.
func (h *Handler) BroadcastCampaignEvent(campaignID, eventType string, data map[string]interface{}) {
	h.hub.BroadcastCampaignEvent(campaignID, eventType, data)
}

func (h *Handler) GetHub() *Hub {
	return h.hub
}
