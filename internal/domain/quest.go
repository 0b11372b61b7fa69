package domain

import "time"

// QuestStatus is the lifecycle state of a quest
type QuestStatus string

const (
	QuestActive    QuestStatus = "active"
	QuestCompleted QuestStatus = "completed"
	QuestFailed    QuestStatus = "failed"
)

// Quest Model
type Quest struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Title       string      `gorm:"size:200;not null" json:"title"`
	Description string      `gorm:"type:text" json:"description"`
	Status      QuestStatus `gorm:"size:16;not null" json:"status"`
	Reward      int         `gorm:"not null" json:"reward"`
	CreatedBy   string      `gorm:"size:32" json:"created_by"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
