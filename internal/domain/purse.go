package domain

import "time"

// Purse Model, the gold a character carries
type Purse struct {
	ID          uint      `gorm:"primaryKey" json:"id"`                                   // Primary key
	CharacterID uint      `gorm:"uniqueIndex;not null" json:"character_id"`               // One purse per character
	Character   Character `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"` // Owning character
	Gold        int64     `gorm:"not null;default:0" json:"gold"`                         // Whole gold pieces, never negative
	UpdatedAt   time.Time `json:"updated_at"`                                             // Last balance change
}

// LedgerType classifies a gold movement
type LedgerType string

const (
	LedgerGrant    LedgerType = "grant"    // Loot or reward from the DM
	LedgerSpend    LedgerType = "spend"    // Gold leaving the party
	LedgerTransfer LedgerType = "transfer" // Between two characters
)

// LedgerEntry Model, append-only record of every gold movement
type LedgerEntry struct {
	ID          uint       `gorm:"primaryKey" json:"id"`                   // Primary key
	FromPurseID *uint      `gorm:"index" json:"from_purse_id,omitempty"`   // Nil for grants
	ToPurseID   *uint      `gorm:"index" json:"to_purse_id,omitempty"`     // Nil for spending
	Amount      int64      `gorm:"not null" json:"amount"`                 // Gold moved
	Type        LedgerType `gorm:"size:16;not null" json:"type"`           // grant, spend, transfer
	Note        string     `gorm:"size:200" json:"note"`                   // Free-form reason
	CreatedBy   string     `gorm:"size:32;not null" json:"created_by"`     // Username of the caller
	CreatedAt   int64      `gorm:"autoCreateTime:milli" json:"created_at"` // Timestamp of creation in milliseconds
}
