package realtime

import (
	"sync"                      // Mutexes
	"tabletop/internal/metrics" // Prometheus collectors

	"github.com/sirupsen/logrus" // Logging library
)

// Hub tracks connected clients and the rooms they belong to.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]map[string]struct{} // client -> joined rooms
	rooms   map[string]map[*Client]struct{} // room -> members
	log     *logrus.Entry
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]map[string]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
		log:     logrus.WithField("component", "hub"),
	}
}

// Register adds a client with no room memberships.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		return
	}
	h.clients[c] = make(map[string]struct{}) // No rooms yet
	metrics.ConnectedClients.Inc() // Track open sockets
}

// Unregister removes the client from every room and closes its send buffer.
// Calling it more than once is harmless.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	joined, ok := h.clients[c]
	if !ok {
		return
	}
	for room := range joined {
		h.removeMember(room, c)
	}
	delete(h.clients, c)
	close(c.send) // Stops the write pump
	metrics.ConnectedClients.Dec() // Socket gone
}

// Join subscribes a registered client to room. It reports false for unknown clients.
func (h *Hub) Join(c *Client, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	joined, ok := h.clients[c]
	if !ok {
		return false
	}
	members := h.rooms[room]
	if members == nil {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{} // Room side
	joined[room] = struct{}{} // Client side
	return true
}

// Leave unsubscribes the client from room.
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if joined, ok := h.clients[c]; ok {
		delete(joined, room)
		h.removeMember(room, c)
	}
}

func (h *Hub) removeMember(room string, c *Client) {
	members := h.rooms[room]
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room) // Drop empty rooms
	}
}

// Members returns the number of clients in room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Publish encodes the event once and queues it for every member of room.
// Members whose buffer is full are disconnected rather than blocking the publisher.
func (h *Hub) Publish(room, event string, data any) {
	payload, err := Encode(event, data)
	if err != nil {
		h.log.WithFields(logrus.Fields{"room": room, "event": event, "error": err.Error()}).Error("Failed to encode event")
		return
	}
	metrics.BroadcastsTotal.WithLabelValues(event).Inc() // Count by event name

	var slow []*Client
	h.mu.RLock()
	for c := range h.rooms[room] {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c) // Buffer full, drop after unlocking
		}
	}
	recipients := len(h.rooms[room])
	h.mu.RUnlock()

	h.log.WithFields(logrus.Fields{"room": room, "event": event, "recipients": recipients}).Debug("Broadcast")
	h.drop(slow) // Unregister takes the write lock
}

// Send queues an event for a single client.
func (h *Hub) Send(c *Client, event string, data any) {
	payload, err := Encode(event, data)
	if err != nil {
		h.log.WithFields(logrus.Fields{"event": event, "error": err.Error()}).Error("Failed to encode event")
		return
	}
	var slow []*Client
	h.mu.RLock()
	if _, ok := h.clients[c]; ok {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c) // Buffer full, drop after unlocking
		}
	}
	h.mu.RUnlock()
	h.drop(slow) // Unregister takes the write lock
}

func (h *Hub) drop(slow []*Client) {
	for _, c := range slow {
		h.log.WithField("username", c.identity.Username).Warn("Send buffer full, dropping client")
		metrics.DroppedClientsTotal.Inc()
		h.Unregister(c)
	}
}
