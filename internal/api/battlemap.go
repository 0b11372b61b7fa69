package api

import (
	"net/http"                    // HTTP status codes
	"tabletop/internal/battlemap" // Battle map service
	"tabletop/internal/domain"    // Loose ids

	"github.com/gin-gonic/gin" // Gin web framework
)

// MoveTokenRequest places a token on the grid
type MoveTokenRequest struct {
	TokenID domain.EntityID `json:"token_id" binding:"required,max=64"`
	X       *int            `json:"x" binding:"required"`
	Y       *int            `json:"y" binding:"required"`
}

// BattlemapStateHandler returns the map of the requested table
func BattlemapStateHandler(svc *battlemap.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		table, ok := tableParam(c)
		if !ok {
			return
		}
		state, err := svc.State(c.Request.Context(), table)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "state": state})
	}
}

// MoveTokenHandler moves a token if the caller owns it or is the DM
func MoveTokenHandler(svc *battlemap.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req MoveTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		table, ok := tableParam(c)
		if !ok {
			return
		}
		moved, err := svc.MoveToken(c.Request.Context(), identity(c), table, string(req.TokenID), *req.X, *req.Y)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "token": moved})
	}
}

// BattlemapSettingsHandler changes grid size, fog, lighting and walls
func BattlemapSettingsHandler(svc *battlemap.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req battlemap.Settings
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		table, ok := tableParam(c)
		if !ok {
			return
		}
		state, err := svc.UpdateSettings(c.Request.Context(), identity(c), table, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "state": state})
	}
}
