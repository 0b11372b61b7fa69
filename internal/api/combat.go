package api

import (
	"net/http"                 // HTTP status codes
	"tabletop/internal/combat" // Combat tracker

	"github.com/gin-gonic/gin" // Gin web framework
)

// StartCombatRequest lists the combatants of a new encounter
type StartCombatRequest struct {
	Combatants []combat.Combatant `json:"combatants" binding:"required,min=1,max=100,dive"`
}

// UpdateHPRequest sets a character's current hit points
type UpdateHPRequest struct {
	CharacterID uint `json:"character_id" binding:"required"`
	HP          *int `json:"hp" binding:"required"`
}

// CombatStateHandler returns the tracker of the requested table
func CombatStateHandler(svc *combat.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		table, ok := tableParam(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "state": svc.State(table)})
	}
}

// StartCombatHandler begins an encounter
func StartCombatHandler(svc *combat.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req StartCombatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		table, ok := tableParam(c)
		if !ok {
			return
		}
		state, err := svc.Start(c.Request.Context(), identity(c), table, req.Combatants)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "state": state})
	}
}

// NextTurnHandler advances the initiative order
func NextTurnHandler(svc *combat.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		table, ok := tableParam(c)
		if !ok {
			return
		}
		state, err := svc.NextTurn(c.Request.Context(), identity(c), table)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "state": state})
	}
}

// EndCombatHandler ends the encounter
func EndCombatHandler(svc *combat.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		table, ok := tableParam(c)
		if !ok {
			return
		}
		state, err := svc.End(c.Request.Context(), identity(c), table)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "state": state})
	}
}

// UpdateHPHandler sets hit points, clamped to the character's maximum
func UpdateHPHandler(svc *combat.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateHPRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		update, err := svc.UpdateHP(c.Request.Context(), identity(c), req.CharacterID, *req.HP)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "hp_current": update.HPCurrent, "hp_max": update.HPMax})
	}
}
