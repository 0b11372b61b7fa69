package api

import (
	"context"                     // Cancellation and deadlines
	"encoding/json"               // JSON encoding/decoding
	"fmt"                         // Error wrapping
	"net/http"                    // HTTP status codes
	"net/url"                     // Origin parsing
	"slices"                      // Slice helpers
	"strings"                     // String manipulation
	"tabletop/internal/battlemap" // Battle map service
	"tabletop/internal/chat"      // Chat service
	"tabletop/internal/domain"    // Domain models and errors
	"tabletop/internal/realtime"  // Socket broadcasts
	"time"                        // Timestamps

	"github.com/gin-gonic/gin"         // Gin web framework
	"github.com/gin-gonic/gin/binding" // Struct validation
	"github.com/gorilla/websocket"     // WebSocket connections
	"github.com/sirupsen/logrus"       // Logging library
	"gorm.io/gorm"                     // GORM ORM library
)

// SendMessagePayload is the data of send_message
type SendMessagePayload struct {
	Message string             `json:"message"`
	Type    domain.MessageType `json:"type"`
}

// SecretMessagePayload is the data of an inbound secret_message
type SecretMessagePayload struct {
	To      string `json:"to" binding:"required,max=32"`
	Message string `json:"message" binding:"required,max=2000"`
}

// SecretMessage is delivered to the recipient's private room and echoed to the sender
type SecretMessage struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// BattlemapPayload is the data of join_battlemap
type BattlemapPayload struct {
	Table string `json:"table"`
}

// SocketHandler dispatches inbound socket events
type SocketHandler struct {
	db   *gorm.DB
	hub  *realtime.Hub
	chat *chat.Service
	maps *battlemap.Service
}

// NewSocketHandler wires the inbound event handler
func NewSocketHandler(db *gorm.DB, hub *realtime.Hub, chatSvc *chat.Service, maps *battlemap.Service) *SocketHandler {
	return &SocketHandler{db: db, hub: hub, chat: chatSvc, maps: maps}
}

// decodeEvent unmarshals and validates event data. Missing data decodes as {}.
func decodeEvent(env realtime.Envelope, dst any) error {
	if len(env.Data) > 0 && string(env.Data) != "null" { // Events without payload still validate
		if err := json.Unmarshal(env.Data, dst); err != nil {
			return fmt.Errorf("%w: malformed %s data", domain.ErrValidation, env.Event)
		}
	}
	if err := binding.Validator.ValidateStruct(dst); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrValidation, describeBindError(err))
	}
	return nil
}

// HandleEvent implements realtime.Handler
func (h *SocketHandler) HandleEvent(ctx context.Context, c *realtime.Client, env realtime.Envelope) error {
	id := c.Identity()
	switch env.Event {
	case realtime.EventSendMessage:
		var p SendMessagePayload
		if err := decodeEvent(env, &p); err != nil {
			return err
		}
		_, err := h.chat.Send(ctx, id, p.Message, p.Type)
		return err

	case realtime.EventDiceRoll:
		var req chat.RollRequest
		if err := decodeEvent(env, &req); err != nil {
			return err
		}
		_, err := h.chat.Roll(id, req)
		return err

	case realtime.EventJoinBattlemap:
		var p BattlemapPayload
		if err := decodeEvent(env, &p); err != nil {
			return err
		}
		state, err := h.maps.State(ctx, p.Table)
		if err != nil {
			return err
		}
		h.hub.Join(c, realtime.RoomBattlemap)
		h.hub.Send(c, realtime.EventBattlemapState, state)
		return nil

	case realtime.EventLeaveBattlemap:
		h.hub.Leave(c, realtime.RoomBattlemap)
		return nil

	case realtime.EventSecretMessage:
		return h.secretMessage(ctx, id, env)

	default:
		return fmt.Errorf("%w: unknown event %q", domain.ErrValidation, env.Event)
	}
}

// secretMessage delivers a DM's private note to one player. The role is read
// from the users table so a demoted DM loses the ability immediately.
func (h *SocketHandler) secretMessage(ctx context.Context, id domain.Identity, env realtime.Envelope) error {
	var user domain.User
	if err := h.db.WithContext(ctx).Select("id", "role").First(&user, id.UserID).Error; err != nil || user.Role != domain.RoleDM { // Current role, not the one at connect
		return fmt.Errorf("%w: only the DM can send secret messages", domain.ErrForbidden)
	}
	var p SecretMessagePayload
	if err := decodeEvent(env, &p); err != nil {
		return err
	}
	msg := SecretMessage{
		From:      id.Username,
		To:        strings.ToLower(p.To),
		Message:   strings.TrimSpace(p.Message),
		Timestamp: time.Now().UTC(),
	}
	h.hub.Publish(realtime.UserRoom(msg.To), realtime.EventSecretMessage, msg)
	if msg.To != id.Username { // Echo to the sender too
		h.hub.Publish(realtime.UserRoom(id.Username), realtime.EventSecretMessage, msg)
	}
	logrus.WithFields(logrus.Fields{"from": msg.From, "to": msg.To}).Info("Secret message sent")
	return nil
}

// checkOrigin accepts same-origin requests, and cross-origin ones listed in allowed
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" { // Non-browser clients
			return true
		}
		if slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host) // Same origin only
	}
}

// WebSocketHandler upgrades an authenticated request and attaches it to the hub
func WebSocketHandler(hub *realtime.Hub, handler realtime.Handler, allowedOrigins []string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(allowedOrigins),
	}
	return func(c *gin.Context) {
		id := identity(c)
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// The upgrader has already written the error response
			logrus.WithFields(logrus.Fields{"username": id.Username, "error": err.Error()}).Warn("Socket upgrade failed")
			return
		}
		client := realtime.NewClient(hub, conn, id)
		hub.Register(client)
		hub.Join(client, realtime.RoomCampaign)
		hub.Join(client, realtime.UserRoom(id.Username))

		go client.WritePump()
		go client.ReadPump(handler)

		hub.Publish(realtime.RoomCampaign, realtime.EventStatus, realtime.StatusPayload{Msg: id.Username + " connected"})
		logrus.WithField("username", id.Username).Info("Socket connected")
	}
}
