package middleware

import (
	"net/http"                 // HTTP status codes
	"tabletop/internal/domain" // Role constants

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging
)

// DMOnlyMiddleware admits only callers whose current role is dm. It runs
// after AuthMiddleware, which has already refreshed the role from the database.
func DMOnlyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, exists := CurrentIdentity(c) // Get identity from context
		// Check if identity exists in context
		if !exists {
			// If not, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authentication required"})
			return
		}
		// Check if user role is dm
		if id.Role != domain.RoleDM {
			// If not dm, abort with forbidden status
			logrus.WithFields(logrus.Fields{"username": id.Username, "path": c.FullPath()}).Debug("DM route refused")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "DM access required"})
			return
		}
		c.Next() // If dm, proceed to the next handler
	}
}
