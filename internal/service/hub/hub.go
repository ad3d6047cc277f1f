// Package hub tracks live WebSocket connections and delivers push events.
// Delivery is fire-and-forget: a write failure or an unknown target drops
// the event, which is acceptable because stale notifications mean nothing
// to a party that already disconnected.
package hub

import (
	"log"
	"sync"
	"time"

	"github.com/wenqianl/facegate/backend/internal/model/verify"
)

// Conn is the narrow slice of a websocket connection the hub needs.
// *websocket.Conn satisfies it; tests substitute fakes.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Event is the outbound push envelope.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type client struct {
	conn Conn

	// writeMu serializes writes per connection, which both satisfies the
	// websocket single-writer requirement and preserves the order in which
	// sequential operations dispatched their events.
	writeMu sync.Mutex

	sessionID string
	role      verify.Role
}

// Hub is the connection registry. A connection holds at most one
// (session, role) binding at a time.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
}

// New returns an empty hub.
func New() *Hub {
	return &Hub{clients: make(map[string]*client)}
}

// Register adds a live connection under its identity.
func (h *Hub) Register(connID string, conn Conn) {
	h.mu.Lock()
	h.clients[connID] = &client{conn: conn}
	h.mu.Unlock()
}

// Unregister forgets the connection and its binding.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	delete(h.clients, connID)
	h.mu.Unlock()
}

// Bind assigns the connection's session role, replacing any prior binding.
func (h *Hub) Bind(connID, sessionID string, role verify.Role) {
	h.mu.Lock()
	if c, ok := h.clients[connID]; ok {
		c.sessionID = sessionID
		c.role = role
	}
	h.mu.Unlock()
}

// Unbind clears the connection's session role but keeps it registered.
func (h *Hub) Unbind(connID string) {
	h.mu.Lock()
	if c, ok := h.clients[connID]; ok {
		c.sessionID = ""
		c.role = ""
	}
	h.mu.Unlock()
}

// UnbindSession clears the binding of every connection in the session,
// used when a session is deleted underneath its connections.
func (h *Hub) UnbindSession(sessionID string) {
	h.mu.Lock()
	for _, c := range h.clients {
		if c.sessionID == sessionID {
			c.sessionID = ""
			c.role = ""
		}
	}
	h.mu.Unlock()
}

// Lookup returns the connection's current binding.
func (h *Hub) Lookup(connID string) (string, verify.Role, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	if !ok || c.sessionID == "" {
		return "", "", false
	}
	return c.sessionID, c.role, true
}

// Live reports whether the connection is still registered.
func (h *Hub) Live(connID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[connID]
	return ok
}

// SessionPeers counts live participant-role connections in the session.
func (h *Hub) SessionPeers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, c := range h.clients {
		if c.sessionID == sessionID && c.role == verify.RoleParticipant {
			n++
		}
	}
	return n
}

// NotifyConnection pushes an event to a single connection.
func (h *Hub) NotifyConnection(connID, event string, data any) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	var sessionID string
	if ok {
		sessionID = c.sessionID
	}
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.send(connID, c, Event{Type: event, SessionID: sessionID, Data: data, Timestamp: time.Now().Unix()})
}

// NotifyOwner pushes an event to the session's owner connection, if live.
func (h *Hub) NotifyOwner(sessionID, event string, data any) {
	h.mu.RLock()
	var owner *client
	var ownerID string
	for id, c := range h.clients {
		if c.sessionID == sessionID && c.role == verify.RoleOwner {
			owner, ownerID = c, id
			break
		}
	}
	h.mu.RUnlock()
	if owner == nil {
		return
	}
	h.send(ownerID, owner, Event{Type: event, SessionID: sessionID, Data: data, Timestamp: time.Now().Unix()})
}

// NotifySession pushes an event to every connection bound to the session,
// owner included.
func (h *Hub) NotifySession(sessionID, event string, data any) {
	h.mu.RLock()
	targets := make(map[string]*client)
	for id, c := range h.clients {
		if c.sessionID == sessionID {
			targets[id] = c
		}
	}
	h.mu.RUnlock()

	ev := Event{Type: event, SessionID: sessionID, Data: data, Timestamp: time.Now().Unix()}
	for id, c := range targets {
		h.send(id, c, ev)
	}
}

func (h *Hub) send(connID string, c *client, ev Event) {
	c.writeMu.Lock()
	err := c.conn.WriteJSON(ev)
	c.writeMu.Unlock()
	if err != nil {
		log.Printf("[hub] dropping event %s for %s: %v", ev.Type, connID, err)
	}
}
