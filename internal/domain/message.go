package domain

import "time"

// MessageType classifies a chat line
type MessageType string

const (
	MessageChat   MessageType = "chat"   // Typed by a user
	MessageRoll   MessageType = "roll"   // Dice roll announcement
	MessageSystem MessageType = "system" // Server notice
)

// Valid reports whether t is one of the known message types
func (t MessageType) Valid() bool {
	switch t {
	case MessageChat, MessageRoll, MessageSystem:
		return true
	}
	return false
}

// ChatMessage Model, append-only
type ChatMessage struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	Username  string      `gorm:"size:32;not null" json:"username"`
	Message   string      `gorm:"type:text;not null" json:"message"`
	Type      MessageType `gorm:"column:message_type;size:16;not null" json:"type"`
	Timestamp time.Time   `gorm:"index;not null" json:"timestamp"`
}
