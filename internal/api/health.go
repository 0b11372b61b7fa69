package api

import (
	"net/http" // HTTP status codes
	"time"     // Server time

	"github.com/gin-gonic/gin" // Gin web framework
)

// HealthHandler reports liveness and the running version
func HealthHandler(version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"version":   version,
		})
	}
}
