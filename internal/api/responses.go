package api

import (
	"errors"                       // Error classification
	"net/http"                     // HTTP status codes
	"strconv"                      // Path parameter parsing
	"tabletop/internal/domain"     // Failure classes
	"tabletop/internal/middleware" // Caller identity

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// statusFor maps a failure class to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the failure body. Server errors are logged with their
// cause and reported generically.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"error":  err.Error(),
		}).Error("Request failed")
	}
	c.JSON(status, gin.H{"success": false, "error": domain.PublicMessage(err)})
}

// respondBindError reports a request body or query that failed to bind
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": describeBindError(err)})
}

// identity returns the caller set by the auth middleware
func identity(c *gin.Context) domain.Identity {
	id, _ := middleware.CurrentIdentity(c)
	return id
}

// idParam parses a positive numeric path parameter
func idParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid " + name})
		return 0, false
	}
	return uint(v), true
}

// tableParam returns the table a combat or map request addresses, answering
// 400 itself when the name is not acceptable
func tableParam(c *gin.Context) (string, bool) {
	table, err := domain.TableName(c.Query("table"))
	if err != nil {
		respondError(c, err)
		return "", false
	}
	return table, true
}
