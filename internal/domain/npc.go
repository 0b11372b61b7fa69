package domain

import (
	"database/sql/driver"
	"time"
)

// Importance ranks NPCs in the roster
type Importance string

const (
	ImportanceHigh   Importance = "high"
	ImportanceMedium Importance = "medium"
	ImportanceLow    Importance = "low"
)

// ImportanceOrder sorts high before medium before low, independent of collation
const ImportanceOrder = "CASE importance WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END"

// Responses are canned lines keyed by situation, such as "greeting" or "quest"
type Responses map[string][]string

func (r Responses) Value() (driver.Value, error) { return encodeColumn(r, "{}") }

func (r *Responses) Scan(src any) error {
	var v Responses
	if !decodeColumn(src, &v, "responses") || v == nil {
		v = Responses{}
	}
	*r = v
	return nil
}

// NPC Model, the DM's roster of recurring characters
type NPC struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Name        string     `gorm:"size:100;not null" json:"name"`
	Location    string     `gorm:"size:100;not null" json:"location"`
	Role        string     `gorm:"size:100;not null" json:"role"` // Part played in the story, e.g. Quest Giver
	Importance  Importance `gorm:"size:8;not null;default:low" json:"importance"`
	Personality string     `gorm:"type:text" json:"personality,omitempty"` // DM eyes only
	Responses   Responses  `gorm:"type:text" json:"responses,omitempty"`   // DM eyes only
	UpdatedBy   string     `gorm:"size:32" json:"updated_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// PublicView strips what only the DM should read
func (n NPC) PublicView() NPC {
	n.Personality = ""
	n.Responses = nil
	n.UpdatedBy = ""
	return n
}
