package domain

import "time"

// Role is the permission level of a user
type Role string

const (
	RolePlayer Role = "player" // Default role on registration
	RoleDM     Role = "dm"     // Game master, superset of player
)

// User Model
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`                         // Primary key
	Username     string     `gorm:"size:32;uniqueIndex;not null" json:"username"` // Unique, lower-cased username
	PasswordHash string     `gorm:"not null" json:"-"`                            // bcrypt hash
	Role         Role       `gorm:"size:16;not null" json:"role"`                 // player or dm
	CreatedAt    time.Time  `json:"created_at"`                                   // Registration time
	LastLogin    *time.Time `json:"last_login,omitempty"`                         // Updated on every successful login
}

// Identity is the authenticated caller bound to a session or socket connection
type Identity struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// IsDM reports whether the identity carries the dm role
func (i Identity) IsDM() bool {
	return i.Role == RoleDM
}

// CanManage reports whether the identity may mutate a record owned by ownerID
func (i Identity) CanManage(ownerID uint) bool {
	return i.IsDM() || i.UserID == ownerID
}
