package domain

import "time"

// Character Model
type Character struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"not null;index" json:"user_id"` // Owning user, permanent
	User   User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`

	Name  string `gorm:"size:100;not null" json:"name"`
	Class string `gorm:"size:64" json:"class"`
	Race  string `gorm:"size:64" json:"race"`
	Level int    `gorm:"not null" json:"level"`

	HPCurrent int `gorm:"column:hp_current;not null" json:"hp_current"`
	HPMax     int `gorm:"column:hp_max;not null" json:"hp_max"`
	AC        int `gorm:"column:ac;not null" json:"ac"`

	Strength     int `gorm:"not null" json:"strength"`
	Dexterity    int `gorm:"not null" json:"dexterity"`
	Constitution int `gorm:"not null" json:"constitution"`
	Intelligence int `gorm:"not null" json:"intelligence"`
	Wisdom       int `gorm:"not null" json:"wisdom"`
	Charisma     int `gorm:"not null" json:"charisma"`

	Skills        Skills        `gorm:"type:text" json:"skills"`
	SavingThrows  SavingThrows  `gorm:"type:text" json:"saving_throws"`
	Equipment     Equipment     `gorm:"type:text" json:"equipment"`
	StatusEffects StatusEffects `gorm:"type:text" json:"status_effects"`
	Notes         string        `gorm:"type:text" json:"notes"`
	ImageURL      string        `gorm:"column:image_url;size:255" json:"image_url"`

	TokenX     int  `gorm:"column:token_x;not null" json:"token_x"`
	TokenY     int  `gorm:"column:token_y;not null" json:"token_y"`
	InCombat   bool `gorm:"not null" json:"in_combat"`
	Initiative int  `gorm:"not null" json:"initiative"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SheetColumns lists every column replaced by a full sheet update
var SheetColumns = []string{
	"name", "class", "race", "level", "hp_current", "hp_max", "ac",
	"strength", "dexterity", "constitution", "intelligence", "wisdom", "charisma",
	"skills", "saving_throws", "equipment", "status_effects", "notes", "image_url", "updated_at",
}

// Normalize replaces nil collections with empty ones so they encode as {} and []
func (c *Character) Normalize() {
	if c.Skills == nil {
		c.Skills = Skills{}
	}
	if c.SavingThrows == nil {
		c.SavingThrows = SavingThrows{}
	}
	if c.Equipment == nil {
		c.Equipment = Equipment{}
	}
	if c.StatusEffects == nil {
		c.StatusEffects = StatusEffects{}
	}
}

// AbilityModifiers returns the standard modifier floor((score-10)/2) for each ability
func (c *Character) AbilityModifiers() map[string]int {
	return map[string]int{
		"strength":     AbilityModifier(c.Strength),
		"dexterity":    AbilityModifier(c.Dexterity),
		"constitution": AbilityModifier(c.Constitution),
		"intelligence": AbilityModifier(c.Intelligence),
		"wisdom":       AbilityModifier(c.Wisdom),
		"charisma":     AbilityModifier(c.Charisma),
	}
}

// AbilityModifier rounds toward negative infinity, so a score of 9 gives -1
func AbilityModifier(score int) int {
	diff := score - 10
	if diff < 0 && diff%2 != 0 {
		return diff/2 - 1
	}
	return diff / 2
}
