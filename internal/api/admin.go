package api

import (
	"errors"                   // Error classification
	"fmt"                      // Error wrapping
	"net/http"                 // HTTP status codes
	"strconv"                  // String conversion
	"tabletop/internal/domain" // Importing domain models
	"time"                     // Date filters

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// Page size bounds for the DM listings
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// paginate reads page and page_size, falling back to defaults on bad input
func paginate(c *gin.Context) (page, pageSize int) {
	page = 1                   // Default page number
	pageSize = defaultPageSize // Default page size
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v // Set page if valid
		}
	}
	// Check and set page size within limits
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= maxPageSize {
			pageSize = v // Set page size
		}
	}
	return page, pageSize
}

func totalPages(total int64, pageSize int) int {
	return (int(total) + pageSize - 1) / pageSize
}

// UserAdminResponse represents an account as listed to the DM
type UserAdminResponse struct {
	ID         uint        `json:"id"`         // User ID
	Username   string      `json:"username"`   // Username
	Role       domain.Role `json:"role"`       // User role
	CreatedAt  time.Time   `json:"created_at"` // Registration time
	LastLogin  *time.Time  `json:"last_login,omitempty"`
	Characters int64       `json:"characters"` // Number of owned characters
}

// ListUsersHandler returns all accounts with their character counts
func ListUsersHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		gdb := db.WithContext(c.Request.Context())
		page, pageSize := paginate(c)
		offset := (page - 1) * pageSize // Calculate offset for pagination

		var total int64 // Total user count
		if err := gdb.Model(&domain.User{}).Count(&total).Error; err != nil {
			respondError(c, fmt.Errorf("%w: count users: %v", domain.ErrStorage, err))
			return
		}
		var users []domain.User
		if err := gdb.Order("id").Offset(offset).Limit(pageSize).Find(&users).Error; err != nil {
			respondError(c, fmt.Errorf("%w: list users: %v", domain.ErrStorage, err))
			return
		}

		// Character counts for this page only
		ids := make([]uint, len(users))
		for i, u := range users {
			ids[i] = u.ID
		}
		var counts []struct {
			UserID uint
			N      int64
		}
		if len(ids) > 0 {
			err := gdb.Model(&domain.Character{}).Select("user_id, count(*) as n").
				Where("user_id IN ?", ids).Group("user_id").Scan(&counts).Error
			if err != nil {
				respondError(c, fmt.Errorf("%w: count characters: %v", domain.ErrStorage, err))
				return
			}
		}
		owned := make(map[uint]int64, len(counts))
		for _, row := range counts {
			owned[row.UserID] = row.N
		}

		resp := make([]UserAdminResponse, len(users))
		for i, u := range users {
			resp[i] = UserAdminResponse{
				ID:         u.ID,
				Username:   u.Username,
				Role:       u.Role,
				CreatedAt:  u.CreatedAt,
				LastLogin:  u.LastLogin,
				Characters: owned[u.ID],
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"success":     true,
			"users":       resp,                        // List of users
			"page":        page,                        // Current page
			"page_size":   pageSize,                    // Page size
			"total":       total,                       // Total number of users
			"total_pages": totalPages(total, pageSize), // Total pages
		})
	}
}

// UpdateRoleRequest promotes or demotes an account
type UpdateRoleRequest struct {
	Role domain.Role `json:"role" binding:"required,oneof=player dm"`
}

// UpdateUserRoleHandler changes a user's role. The change applies to the
// user's next request because the DM middleware re-reads roles.
func UpdateUserRoleHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req UpdateRoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		id := identity(c)
		var user domain.User
		err := db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&user, userID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: user %d", domain.ErrNotFound, userID)
				}
				return fmt.Errorf("%w: load user: %v", domain.ErrStorage, err)
			}
			if user.Role == req.Role {
				return nil
			}
			// The table always keeps at least one DM
			if user.Role == domain.RoleDM {
				var dms int64
				if err := tx.Model(&domain.User{}).Where("role = ?", domain.RoleDM).Count(&dms).Error; err != nil {
					return fmt.Errorf("%w: count dms: %v", domain.ErrStorage, err)
				}
				if dms <= 1 {
					return fmt.Errorf("%w: cannot demote the last DM", domain.ErrValidation)
				}
			}
			if err := tx.Model(&user).Update("role", req.Role).Error; err != nil {
				return fmt.Errorf("%w: update role: %v", domain.ErrStorage, err)
			}
			user.Role = req.Role
			return nil
		})
		if err != nil {
			respondError(c, err)
			return
		}
		logrus.WithFields(logrus.Fields{
			"user_id":    user.ID,
			"username":   user.Username,
			"role":       user.Role,
			"changed_by": id.Username,
		}).Info("User role changed")
		c.JSON(http.StatusOK, gin.H{"success": true, "user": UserAdminResponse{
			ID:        user.ID,
			Username:  user.Username,
			Role:      user.Role,
			CreatedAt: user.CreatedAt,
			LastLogin: user.LastLogin,
		}})
	}
}

// parseDateFilter accepts RFC 3339 timestamps or plain dates
func parseDateFilter(name, v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %s must be a date or RFC 3339 timestamp", domain.ErrValidation, name)
}

// ChatLogHandler returns the full chat archive, newest first, with optional
// filtering by username, type, or date
func ChatLogHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, pageSize := paginate(c)
		offset := (page - 1) * pageSize // Calculate offset for pagination

		query := db.WithContext(c.Request.Context()).Model(&domain.ChatMessage{}) // Start building the query
		if username := c.Query("username"); username != "" {
			query = query.Where("username = ?", username) // Filter by author
		}
		if typ := c.Query("type"); typ != "" {
			if !domain.MessageType(typ).Valid() {
				respondError(c, fmt.Errorf("%w: unknown message type %q", domain.ErrValidation, typ))
				return
			}
			query = query.Where("message_type = ?", typ) // Filter by message type
		}
		if from := c.Query("from"); from != "" {
			t, err := parseDateFilter("from", from)
			if err != nil {
				respondError(c, err)
				return
			}
			query = query.Where("timestamp >= ?", t.UTC()) // Filter by start date
		}
		if to := c.Query("to"); to != "" {
			t, err := parseDateFilter("to", to)
			if err != nil {
				respondError(c, err)
				return
			}
			query = query.Where("timestamp <= ?", t.UTC()) // Filter by end date
		}

		var total int64 // Total message count
		if err := query.Count(&total).Error; err != nil {
			respondError(c, fmt.Errorf("%w: count messages: %v", domain.ErrStorage, err))
			return
		}
		var messages []domain.ChatMessage
		if err := query.Order("timestamp desc").Order("id desc").Offset(offset).Limit(pageSize).Find(&messages).Error; err != nil {
			respondError(c, fmt.Errorf("%w: list messages: %v", domain.ErrStorage, err))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":     true,
			"messages":    messages,                    // List of messages
			"page":        page,                        // Current page
			"page_size":   pageSize,                    // Page size
			"total":       total,                       // Total number of messages
			"total_pages": totalPages(total, pageSize), // Total pages
		})
	}
}
