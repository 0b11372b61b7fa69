package api

import (
	"net/http"                   // HTTP status codes
	"tabletop/internal/treasury" // Gold ledger

	"github.com/gin-gonic/gin" // Gin web framework
)

// GoldRequest represents a grant or spend
type GoldRequest struct {
	Amount int64  `json:"amount" binding:"required,gt=0,lte=1000000"` // Gold pieces
	Note   string `json:"note" binding:"max=200"`                     // Reason shown in the ledger
}

// TransferRequest represents a transfer to another character
type TransferRequest struct {
	ToCharacterID uint   `json:"to_character_id" binding:"required"`         // Recipient character
	Amount        int64  `json:"amount" binding:"required,gt=0,lte=1000000"` // Gold pieces
	Note          string `json:"note" binding:"max=200"`                     // Reason shown in the ledger
}

// GetPurseHandler returns the purse of a character
func GetPurseHandler(svc *treasury.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		characterID, ok := idParam(c, "id")
		if !ok {
			return
		}
		purse, err := svc.Balance(c.Request.Context(), identity(c), characterID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "purse": purse})
	}
}

// GrantGoldHandler lets the DM add gold to a character's purse
func GrantGoldHandler(svc *treasury.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		characterID, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req GoldRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		purse, err := svc.Grant(c.Request.Context(), identity(c), characterID, req.Amount, req.Note)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "purse": purse})
	}
}

// SpendGoldHandler removes gold from a purse the caller manages
func SpendGoldHandler(svc *treasury.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		characterID, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req GoldRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		purse, err := svc.Spend(c.Request.Context(), identity(c), characterID, req.Amount, req.Note)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "purse": purse})
	}
}

// TransferGoldHandler moves gold from a purse the caller manages to another character
func TransferGoldHandler(svc *treasury.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		characterID, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req TransferRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		from, to, err := svc.Transfer(c.Request.Context(), identity(c), characterID, req.ToCharacterID, req.Amount, req.Note)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "from": from, "to": to})
	}
}

// PurseHistoryHandler returns the ledger of a character's purse, newest first
func PurseHistoryHandler(svc *treasury.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		characterID, ok := idParam(c, "id")
		if !ok {
			return
		}
		page, pageSize := paginate(c)
		entries, total, err := svc.History(c.Request.Context(), identity(c), characterID, page, pageSize)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":     true,
			"entries":     entries,                     // Ledger entries
			"page":        page,                        // Current page
			"page_size":   pageSize,                    // Page size
			"total":       total,                       // Total entries
			"total_pages": totalPages(total, pageSize), // Total pages
		})
	}
}
