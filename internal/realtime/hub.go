package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vhvplatform/go-delivery-service/internal/metrics"
	"github.com/vhvplatform/go-delivery-service/internal/shared/logger"
)

// Hub is the process-wide connection directory for the realtime presence
// layer. It is created once at server start; entries are added on client
// connect and removed on disconnect. The orchestrator's in-app push step
// queries it read-only; no other component mutates it.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	log     *logger.Logger
}

// NewHub creates the connection directory
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		log:     log,
	}
}

// Register adds a client connection for a user
func (h *Hub) Register(c *Client) {
	if c == nil || c.userID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.userID]
	if set == nil {
		set = make(map[*Client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	metrics.RealtimeConnections.Inc()
}

// Unregister removes a client connection and closes it
func (h *Hub) Unregister(c *Client) {
	if c == nil || c.userID == "" {
		return
	}
	h.mu.Lock()
	set := h.clients[c.userID]
	if set != nil {
		if _, ok := set[c]; ok {
			delete(set, c)
			metrics.RealtimeConnections.Dec()
		}
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
	}
	h.mu.Unlock()
	c.Close()
}

// Send delivers a payload to every live connection of a user. A missing
// connection is not an error; false simply means nobody was listening.
func (h *Hub) Send(userID string, payload []byte) bool {
	if userID == "" || len(payload) == 0 {
		return false
	}

	h.mu.RLock()
	set := h.clients[userID]
	conns := make([]*Client, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	ok := false
	for _, c := range conns {
		if h.trySend(c, payload) {
			ok = true
		}
	}
	return ok
}

// trySend queues a payload on one connection. The snapshot in Send races
// with Unregister, so a closed client must be skipped rather than written:
// the done check makes that safe without ever closing the send channel.
func (h *Hub) trySend(c *Client, payload []byte) bool {
	select {
	case <-c.done:
		// Already torn down by a concurrent unregister.
		return false
	case c.send <- payload:
		return true
	default:
		// Slow consumer; drop the connection rather than block dispatch
		h.Unregister(c)
		return false
	}
}

// SendJSON marshals v and delivers it to the user's live connections
func (h *Hub) SendJSON(userID string, v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		h.log.Error("Failed to marshal realtime event", "error", err)
		return false
	}
	return h.Send(userID, b)
}

// Connections returns the number of live connections for a user
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Close tears down the directory, closing every connection
func (h *Hub) Close() {
	h.mu.Lock()
	var all []*Client
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	for _, c := range all {
		metrics.RealtimeConnections.Dec()
		c.Close()
	}
}

// Client is one live websocket connection owned by a user
type Client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}

	closeOnce sync.Once
}

// NewClient wraps an accepted websocket connection
func NewClient(userID string, conn *websocket.Conn) *Client {
	return &Client{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, 64),
		done:   make(chan struct{}),
	}
}

// Close shuts the connection down exactly once. The send channel is never
// closed: concurrent Send calls may still hold a reference, and a send on a
// closed channel would panic. Teardown is signalled through done instead.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// WritePump drains the send channel onto the wire until the client is closed
func (c *Client) WritePump() {
	if c.conn == nil {
		return
	}
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}
