// Package chat persists chat lines and announces them, together with dice
// rolls, to the campaign room.
package chat

import (
	"context"                    // Cancellation and deadlines
	"fmt"                        // Error wrapping
	"strings"                    // String manipulation
	"tabletop/internal/dice"     // Dice notation and rolls
	"tabletop/internal/domain"   // Domain models and errors
	"tabletop/internal/metrics"  // Prometheus collectors
	"tabletop/internal/realtime" // Socket broadcasts
	"tabletop/internal/utils"    // Cache helpers
	"time"                       // Timestamps

	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
)

const (
	// HistoryLimit is the number of messages returned by Recent.
	HistoryLimit = 100
	// SystemUser is the author of server generated lines such as roll results.
	SystemUser = "System"
	// MaxMessageLength bounds a single chat line.
	MaxMessageLength = 2000
)

// MessageEvent is the payload of new_message.
type MessageEvent struct {
	Username  string             `json:"username"`
	Message   string             `json:"message"`
	Type      domain.MessageType `json:"type"`
	Timestamp time.Time          `json:"timestamp"`
}

// RollRequest is a dice roll as submitted by a client.
type RollRequest struct {
	Dice     string `json:"dice" binding:"required,dicenotation"`
	Modifier int    `json:"modifier" binding:"min=-1000,max=1000"`
	Reason   string `json:"reason" binding:"max=200"`
}

// Service handles chat and dice for the campaign room.
type Service struct {
	db     *gorm.DB
	rdb    *redis.Client
	pub    realtime.Publisher
	roller *dice.Roller
}

// NewService wires the chat service. rdb may be nil to disable caching.
func NewService(db *gorm.DB, rdb *redis.Client, pub realtime.Publisher, roller *dice.Roller) *Service {
	return &Service{db: db, rdb: rdb, pub: pub, roller: roller}
}

// Send stores a chat line and broadcasts it. Blank text is ignored and
// reported as (nil, nil).
func (s *Service) Send(ctx context.Context, id domain.Identity, text string, typ domain.MessageType) (*domain.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil // Nothing to say
	}
	if len(text) > MaxMessageLength {
		return nil, fmt.Errorf("%w: message longer than %d characters", domain.ErrValidation, MaxMessageLength)
	}
	if typ == "" {
		typ = domain.MessageChat // Plain chat by default
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: unknown message type %q", domain.ErrValidation, typ)
	}

	msg := domain.ChatMessage{
		Username:  id.Username,
		Message:   text,
		Type:      typ,
		Timestamp: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		logrus.WithFields(logrus.Fields{"username": id.Username, "error": err.Error()}).Error("Failed to store chat message")
		return nil, fmt.Errorf("%w: store message: %v", domain.ErrStorage, err)
	}
	if err := utils.InvalidateCache(ctx, s.rdb, utils.CacheKeyRecentMessages); err != nil { // After the insert, so readers never cache a history without it
		logrus.WithError(err).Warn("Failed to invalidate message cache")
	}

	s.pub.Publish(realtime.RoomCampaign, realtime.EventNewMessage, MessageEvent{
		Username:  msg.Username,
		Message:   msg.Message,
		Type:      msg.Type,
		Timestamp: msg.Timestamp,
	})
	return &msg, nil
}

// Recent returns the latest HistoryLimit messages, oldest first.
func (s *Service) Recent(ctx context.Context) ([]domain.ChatMessage, error) {
	gen, genErr := utils.CacheGeneration(ctx, s.rdb, utils.CacheKeyRecentMessages) // Taken before the database read
	if genErr != nil {
		logrus.WithError(genErr).Warn("Message cache generation read failed")
	}
	var messages []domain.ChatMessage
	hit, err := utils.GetCache(ctx, s.rdb, utils.CacheKeyRecentMessages, &messages)
	if err != nil {
		logrus.WithError(err).Warn("Message cache read failed")
	}
	if hit && err == nil {
		return messages, nil // Cache hit
	}

	messages = nil
	if err := s.db.WithContext(ctx).
		Order("timestamp desc").Order("id desc").
		Limit(HistoryLimit).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("%w: load messages: %v", domain.ErrStorage, err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 { // Oldest first
		messages[i], messages[j] = messages[j], messages[i]
	}

	// A Send that landed during the read has bumped the generation; skip the fill then
	if genErr == nil {
		if _, err := utils.FillCache(ctx, s.rdb, utils.CacheKeyRecentMessages, gen, messages, utils.CacheTTL); err != nil {
			logrus.WithError(err).Warn("Message cache write failed")
		}
	}
	return messages, nil
}

// Roll rolls the requested dice and announces the result from SystemUser.
// Roll results are not stored in the message history.
func (s *Service) Roll(id domain.Identity, req RollRequest) (dice.Result, error) {
	spec, err := dice.Parse(req.Dice)
	if err != nil {
		return dice.Result{}, err
	}
	reason := strings.TrimSpace(req.Reason)
	res := s.roller.Roll(strings.TrimSpace(req.Dice), spec, req.Modifier)

	s.pub.Publish(realtime.RoomCampaign, realtime.EventNewMessage, MessageEvent{
		Username:  SystemUser,
		Message:   res.Describe(id.Username, reason),
		Type:      domain.MessageRoll,
		Timestamp: time.Now().UTC(),
	})
	metrics.DiceRollsTotal.Inc() // Count rolls

	logrus.WithFields(logrus.Fields{
		"username": id.Username,
		"dice":     res.Notation,
		"total":    res.Total,
	}).Info("Dice rolled")
	return res, nil
}
