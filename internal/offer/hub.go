package offer

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"dispatch/internal/domain"
)

// Hub maintains one websocket connection per driver and implements
// DriverInbox over it.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*websocket.Conn
}

// NewHub creates an empty driver inbox hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*websocket.Conn)}
}

// Register associates a driver id with its current socket, replacing any
// prior connection for that driver.
func (h *Hub) Register(driverID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.clients[driverID]; ok {
		old.Close()
	}
	h.clients[driverID] = conn
}

// Unregister drops a driver's socket, if it is still the current one.
func (h *Hub) Unregister(driverID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[driverID]; ok && cur == conn {
		delete(h.clients, driverID)
	}
}

type inboxMessage struct {
	AssignmentID string  `json:"assignment_id"`
	OrderID      string  `json:"order_id"`
	Sequence     int     `json:"sequence"`
	ExpiresAt    string  `json:"expires_at"`
	PickupLat    float64 `json:"pickup_lat"`
	PickupLng    float64 `json:"pickup_lng"`
}

// Notify implements DriverInbox: pushes the assignment to the driver's
// socket if one is open, otherwise is a silent no-op (spec 6: inbox push
// is a convenience, never the system of record).
func (h *Hub) Notify(driverID string, a *domain.Assignment) error {
	h.mu.RLock()
	conn, ok := h.clients[driverID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}

	msg := inboxMessage{
		AssignmentID: a.ID,
		OrderID:      a.OrderID,
		Sequence:     a.Sequence,
		ExpiresAt:    a.OfferExpiry.Format("2006-01-02T15:04:05Z07:00"),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}
