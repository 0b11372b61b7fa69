package api

import (
	"errors"                       // Error classification
	"net/http"                     // HTTP status codes
	"strings"                      // String manipulation
	"tabletop/internal/domain"     // Importing domain models
	"tabletop/internal/middleware" // Session cookie name
	"tabletop/internal/utils"      // Utility functions
	"time"                         // Login timestamp

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"golang.org/x/crypto/bcrypt" // Password hashing
	"gorm.io/gorm"               // GORM ORM library
)

// Request struct for registration
type RegisterRequest struct {
	Username string `json:"username" binding:"required,username"`     // 3-32 of [A-Za-z0-9_-]
	Password string `json:"password" binding:"required,min=6,max=72"` // bcrypt reads at most 72 bytes
}

// Request struct for login
type LoginRequest struct {
	Username string `json:"username" binding:"required,max=32"` // Username must be provided
	Password string `json:"password" binding:"required,max=72"` // Password must be provided
}

// RegisterHandler creates a player account
func RegisterHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			respondBindError(c, err)
			return
		}
		username := strings.ToLower(req.Username) // Usernames are case-insensitive
		var count int64
		// Check for an existing account first so duplicates are a validation error
		if err := db.Model(&domain.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
			respondError(c, err)
			return
		}
		if count > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "username already taken"})
			return
		}
		// Hash the password and create the user
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			// If hashing fails, return internal server error
			respondError(c, err)
			return
		}
		user := domain.User{Username: username, PasswordHash: string(hash), Role: domain.RolePlayer}
		// Attempt to create the user in the database
		if err := db.Create(&user).Error; err != nil {
			// A concurrent registration may still win the unique index
			logrus.WithFields(logrus.Fields{"username": username, "error": err.Error()}).Warn("Registration failed")
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "username already taken"})
			return
		}
		logrus.WithField("username", username).Info("User registered") // Log registration
		c.JSON(http.StatusCreated, gin.H{"success": true})
	}
}

// LoginHandler authenticates a user, sets the session cookie and returns the token
func LoginHandler(db *gorm.DB, jwtSecret string, secureCookie bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			respondBindError(c, err)
			return
		}
		var user domain.User // Fetch user from database
		err := db.Where("username = ?", strings.ToLower(req.Username)).First(&user).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, err)
			return
		}
		// Unknown user and wrong password look the same to the caller
		if err != nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
			logrus.WithFields(logrus.Fields{"username": req.Username, "ip": c.ClientIP()}).Warn("Failed login")
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid username or password"})
			return
		}
		// Record the login time
		now := time.Now().UTC()
		if err := db.Model(&user).Update("last_login", now).Error; err != nil {
			logrus.WithFields(logrus.Fields{"user_id": user.ID, "error": err.Error()}).Warn("Failed to record last login")
		}
		// Generate JWT token
		id := domain.Identity{UserID: user.ID, Username: user.Username, Role: user.Role}
		token, err := utils.GenerateJWT(id, jwtSecret)
		if err != nil {
			// If token generation fails, return internal server error
			respondError(c, err)
			return
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(middleware.SessionCookie, token, int(utils.SessionTTL.Seconds()), "/", "", secureCookie, true)
		logrus.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("User logged in")
		c.JSON(http.StatusOK, gin.H{"success": true, "role": user.Role, "username": user.Username, "token": token})
	}
}

// LogoutHandler clears the session cookie
func LogoutHandler(secureCookie bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(middleware.SessionCookie, "", -1, "/", "", secureCookie, true) // Expire immediately
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
