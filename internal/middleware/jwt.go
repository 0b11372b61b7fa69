package middleware

import (
	"errors"                   // Error classification
	"net/http"                 // HTTP status codes
	"strings"                  // String manipulation
	"tabletop/internal/domain" // Identity type
	"tabletop/internal/utils"  // JWT utility functions

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// SessionCookie is the name of the cookie carrying the session token
const SessionCookie = "session"

// IdentityKey is the gin context key holding the caller's domain.Identity
const IdentityKey = "identity"

// TokenFromRequest returns the session token from the cookie, the
// Authorization header or the token query parameter, in that order
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value // Browser session
	}
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ") // API clients
	}
	return r.URL.Query().Get("token") // Socket clients that cannot set headers
}

// AuthMiddleware validates the session token and stores the caller identity.
// The role is read from the users table on every request, so a promotion or
// demotion applies to the next request rather than the next login.
func AuthMiddleware(db *gorm.DB, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := TokenFromRequest(c.Request) // Find the token
		// Check if a token was presented at all
		if tokenStr == "" {
			// If not, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authentication required"})
			return
		}
		claims, err := utils.ParseJWT(tokenStr, secret) // Parse the JWT token
		if err != nil {
			// If parsing fails, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid or expired session"})
			return
		}
		var user domain.User // Fetch the current account
		if err := db.WithContext(c.Request.Context()).Select("id", "username", "role").First(&user, claims.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Account deleted since login
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid or expired session"})
				return
			}
			logrus.WithFields(logrus.Fields{"user_id": claims.UserID, "error": err.Error()}).Error("Failed to load session user")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal server error"})
			return
		}
		id := claims.Identity()
		if id.Role != user.Role {
			logrus.WithFields(logrus.Fields{"username": user.Username, "token_role": id.Role, "role": user.Role}).Debug("Session role is stale")
		}
		id.Role = user.Role    // Current role, not the one at login
		c.Set(IdentityKey, id) // Store identity in context
		c.Next()               // Proceed to the next handler
	}
}

// CurrentIdentity returns the identity stored by AuthMiddleware
func CurrentIdentity(c *gin.Context) (domain.Identity, bool) {
	v, exists := c.Get(IdentityKey)
	if !exists {
		return domain.Identity{}, false
	}
	id, ok := v.(domain.Identity)
	return id, ok
}
