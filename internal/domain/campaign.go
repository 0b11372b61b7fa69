package domain

import "time"

// CampaignEntry Model, one key of the shared campaign notebook
type CampaignEntry struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Key       string    `gorm:"size:64;uniqueIndex;not null" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedBy string    `gorm:"size:32" json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}
