package realtime

import (
	"context"                  // Cancellation and deadlines
	"encoding/json"            // JSON encoding/decoding
	"tabletop/internal/domain" // Domain models and errors
	"time"                     // Timestamps

	"github.com/gorilla/websocket" // WebSocket connections
	"github.com/sirupsen/logrus"   // Logging library
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 8192
	// Outbound frames buffered per client before it is considered too slow.
	sendBuffer = 256
	// Upper bound on handling one inbound event.
	eventTimeout = 10 * time.Second
)

// Handler processes inbound events for a connection. A returned error is
// reported back to that connection only.
type Handler interface {
	HandleEvent(ctx context.Context, c *Client, env Envelope) error
}

// Client is one authenticated socket connection.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	identity domain.Identity
	log      *logrus.Entry
}

// NewClient wraps an upgraded connection. conn may be nil in tests that only
// observe the send buffer.
func NewClient(hub *Hub, conn *websocket.Conn, id domain.Identity) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		identity: id,
		log:      logrus.WithFields(logrus.Fields{"component": "client", "username": id.Username}),
	}
}

// Identity returns the identity established when the connection was opened.
func (c *Client) Identity() domain.Identity {
	return c.identity
}

// ReadPump reads frames until the connection fails, dispatching each to h.
func (c *Client) ReadPump(h Handler) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
		c.log.Info("Socket closed")
	}()
	c.conn.SetReadLimit(maxMessageSize) // Reject oversized frames
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Warn("Socket read error")
			}
			return
		}
		c.dispatch(h, message) // One event per frame
	}
}

func (c *Client) dispatch(h Handler, message []byte) {
	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil || env.Event == "" {
		c.hub.Send(c, EventError, ErrorPayload{Error: "malformed event"})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout) // Bound each event
	defer cancel()
	if err := h.HandleEvent(ctx, c, env); err != nil {
		c.log.WithFields(logrus.Fields{"event": env.Event, "error": err.Error()}).Warn("Event rejected")
		c.hub.Send(c, EventError, ErrorPayload{Event: env.Event, Error: domain.PublicMessage(err)}) // Sender only
	}
}

// WritePump drains the send buffer to the connection and keeps it alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// One frame per event; clients parse each frame as a single envelope.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
