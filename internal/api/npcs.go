package api

import (
	"errors"                     // Error classification
	"fmt"                        // Error wrapping
	"net/http"                   // HTTP status codes
	"tabletop/internal/domain"   // Importing domain models
	"tabletop/internal/realtime" // Socket broadcasts
	"time"                       // Update timestamps

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// CreateNPCRequest adds an NPC to the roster
type CreateNPCRequest struct {
	Name        string            `json:"name" binding:"required,max=100"`
	Location    string            `json:"location" binding:"required,max=100"`
	Role        string            `json:"role" binding:"required,max=100"`
	Importance  domain.Importance `json:"importance" binding:"omitempty,oneof=low medium high"` // Defaults to low
	Personality string            `json:"personality" binding:"max=2000"`
	Responses   domain.Responses  `json:"responses" binding:"max=20"`
}

// UpdateNPCRequest changes the given fields only
type UpdateNPCRequest struct {
	Name        *string            `json:"name" binding:"omitempty,min=1,max=100"`
	Location    *string            `json:"location" binding:"omitempty,min=1,max=100"`
	Role        *string            `json:"role" binding:"omitempty,min=1,max=100"`
	Importance  *domain.Importance `json:"importance" binding:"omitempty,oneof=low medium high"`
	Personality *string            `json:"personality" binding:"omitempty,max=2000"`
	Responses   domain.Responses   `json:"responses" binding:"omitempty,max=20"`
}

// NPCEvent is the payload of npc_update
type NPCEvent struct {
	Action string `json:"action"` // create, update or delete
	NPCID  uint   `json:"npc_id"`
	Name   string `json:"name"`
}

// ListNPCsHandler returns the roster, most important first. Only the DM sees
// personalities and scripted responses.
func ListNPCsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var npcs []domain.NPC
		if err := db.WithContext(c.Request.Context()).Order(domain.ImportanceOrder).Order("name").Order("id").Find(&npcs).Error; err != nil {
			respondError(c, fmt.Errorf("%w: list npcs: %v", domain.ErrStorage, err))
			return
		}
		if !identity(c).IsDM() {
			for i := range npcs {
				npcs[i] = npcs[i].PublicView() // Hide DM notes from players
			}
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "npcs": npcs})
	}
}

// CreateNPCHandler adds an NPC
func CreateNPCHandler(db *gorm.DB, pub realtime.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateNPCRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		id := identity(c)
		npc := domain.NPC{
			Name:        req.Name,
			Location:    req.Location,
			Role:        req.Role,
			Importance:  req.Importance,
			Personality: req.Personality,
			Responses:   req.Responses,
			UpdatedBy:   id.Username,
		}
		if npc.Importance == "" {
			npc.Importance = domain.ImportanceLow // Minor unless stated
		}
		if npc.Responses == nil {
			npc.Responses = domain.Responses{}
		}
		if err := db.WithContext(c.Request.Context()).Create(&npc).Error; err != nil {
			respondError(c, fmt.Errorf("%w: create npc: %v", domain.ErrStorage, err))
			return
		}
		pub.Publish(realtime.RoomCampaign, realtime.EventNPCUpdate, NPCEvent{Action: "create", NPCID: npc.ID, Name: npc.Name})
		logrus.WithFields(logrus.Fields{"npc_id": npc.ID, "name": npc.Name, "dm": id.Username}).Info("NPC created")
		c.JSON(http.StatusCreated, gin.H{"success": true, "npc": npc})
	}
}

// loadNPC fetches an NPC by path id
func loadNPC(gdb *gorm.DB, npcID uint) (domain.NPC, error) {
	var npc domain.NPC
	if err := gdb.First(&npc, npcID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return npc, fmt.Errorf("%w: npc %d", domain.ErrNotFound, npcID)
		}
		return npc, fmt.Errorf("%w: load npc: %v", domain.ErrStorage, err)
	}
	return npc, nil
}

// UpdateNPCHandler changes the fields present in the body
func UpdateNPCHandler(db *gorm.DB, pub realtime.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		npcID, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req UpdateNPCRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		id := identity(c)
		gdb := db.WithContext(c.Request.Context())
		npc, err := loadNPC(gdb, npcID)
		if err != nil {
			respondError(c, err)
			return
		}
		// Collect only the fields that were sent
		if req.Name != nil {
			npc.Name = *req.Name
		}
		if req.Location != nil {
			npc.Location = *req.Location
		}
		if req.Role != nil {
			npc.Role = *req.Role
		}
		if req.Importance != nil {
			npc.Importance = *req.Importance
		}
		if req.Personality != nil {
			npc.Personality = *req.Personality
		}
		if req.Responses != nil {
			npc.Responses = req.Responses // Replaced as a whole
		}
		npc.UpdatedBy = id.Username
		npc.UpdatedAt = time.Now()
		err = gdb.Model(&npc).
			Select("name", "location", "role", "importance", "personality", "responses", "updated_by", "updated_at").
			Updates(&npc).Error
		if err != nil {
			respondError(c, fmt.Errorf("%w: update npc: %v", domain.ErrStorage, err))
			return
		}
		pub.Publish(realtime.RoomCampaign, realtime.EventNPCUpdate, NPCEvent{Action: "update", NPCID: npc.ID, Name: npc.Name})
		logrus.WithFields(logrus.Fields{"npc_id": npc.ID, "dm": id.Username}).Info("NPC updated")
		c.JSON(http.StatusOK, gin.H{"success": true, "npc": npc})
	}
}

// DeleteNPCHandler removes an NPC from the roster
func DeleteNPCHandler(db *gorm.DB, pub realtime.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		npcID, ok := idParam(c, "id")
		if !ok {
			return
		}
		gdb := db.WithContext(c.Request.Context())
		npc, err := loadNPC(gdb, npcID)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := gdb.Delete(&npc).Error; err != nil {
			respondError(c, fmt.Errorf("%w: delete npc: %v", domain.ErrStorage, err))
			return
		}
		pub.Publish(realtime.RoomCampaign, realtime.EventNPCUpdate, NPCEvent{Action: "delete", NPCID: npc.ID, Name: npc.Name})
		logrus.WithFields(logrus.Fields{"npc_id": npc.ID, "dm": identity(c).Username}).Info("NPC deleted")
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
