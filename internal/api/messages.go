package api

import (
	"net/http"               // HTTP status codes
	"tabletop/internal/chat" // Chat service

	"github.com/gin-gonic/gin" // Gin web framework
)

// GetMessagesHandler returns the recent chat history, oldest first
func GetMessagesHandler(svc *chat.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		messages, err := svc.Recent(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "messages": messages})
	}
}

// RollDiceHandler rolls dice for the caller and announces the result to the campaign room
func RollDiceHandler(svc *chat.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req chat.RollRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		res, err := svc.Roll(identity(c), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "result": res})
	}
}
