package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"dispatch/internal/offer"
)

// InboxHandler upgrades a driver's connection to a websocket so the
// Offer Lifecycle can push new offers without the driver having to poll
// (spec 7: inbox push is a convenience, never the system of record).
type InboxHandler struct {
	hub      *offer.Hub
	upgrader websocket.Upgrader
}

// NewInboxHandler creates a new InboxHandler.
func NewInboxHandler(hub *offer.Hub) *InboxHandler {
	return &InboxHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Connect handles GET /drivers/:id/inbox, upgrading to a websocket and
// registering the connection in the Hub until it drops.
func (h *InboxHandler) Connect(c *gin.Context) {
	driverID := c.Param("id")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	h.hub.Register(driverID, conn)
	defer func() {
		h.hub.Unregister(driverID, conn)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
