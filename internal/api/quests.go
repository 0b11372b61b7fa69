package api

import (
	"errors"                     // Error classification
	"fmt"                        // Error wrapping
	"net/http"                   // HTTP status codes
	"tabletop/internal/domain"   // Domain models and errors
	"tabletop/internal/realtime" // Socket broadcasts
	"time"                       // Timestamps

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// CreateQuestRequest describes a new quest
type CreateQuestRequest struct {
	Title       string `json:"title" binding:"required,max=200"`
	Description string `json:"description" binding:"max=5000"`
	Reward      int    `json:"reward" binding:"min=0"`
}

// UpdateQuestRequest moves a quest through its lifecycle
type UpdateQuestRequest struct {
	Status domain.QuestStatus `json:"status" binding:"required,oneof=active completed failed"`
}

// QuestEvent is the payload of quest_update
type QuestEvent struct {
	Action  string             `json:"action"`
	QuestID uint               `json:"quest_id"`
	Title   string             `json:"title"`
	Status  domain.QuestStatus `json:"status"`
}

// ListQuestsHandler lists quests, newest first
func ListQuestsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var quests []domain.Quest
		if err := db.WithContext(c.Request.Context()).Order("created_at desc").Order("id desc").Find(&quests).Error; err != nil {
			respondError(c, fmt.Errorf("%w: list quests: %v", domain.ErrStorage, err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "quests": quests})
	}
}

// CreateQuestHandler adds an active quest
func CreateQuestHandler(db *gorm.DB, pub realtime.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateQuestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		id := identity(c)
		quest := domain.Quest{
			Title:       req.Title,
			Description: req.Description,
			Reward:      req.Reward,
			Status:      domain.QuestActive,
			CreatedBy:   id.Username,
		}
		if err := db.WithContext(c.Request.Context()).Create(&quest).Error; err != nil {
			respondError(c, fmt.Errorf("%w: create quest: %v", domain.ErrStorage, err))
			return
		}
		pub.Publish(realtime.RoomCampaign, realtime.EventQuestUpdate, QuestEvent{Action: "create", QuestID: quest.ID, Title: quest.Title, Status: quest.Status})
		logrus.WithFields(logrus.Fields{"quest_id": quest.ID, "created_by": id.Username}).Info("Quest created")
		c.JSON(http.StatusCreated, gin.H{"success": true, "quest": quest})
	}
}

// UpdateQuestHandler changes the status of a quest
func UpdateQuestHandler(db *gorm.DB, pub realtime.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		questID, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req UpdateQuestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		gdb := db.WithContext(c.Request.Context())
		var quest domain.Quest
		if err := gdb.First(&quest, questID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				respondError(c, fmt.Errorf("%w: quest %d", domain.ErrNotFound, questID))
				return
			}
			respondError(c, fmt.Errorf("%w: load quest: %v", domain.ErrStorage, err))
			return
		}
		if err := gdb.Model(&quest).Updates(map[string]any{"status": req.Status, "updated_at": time.Now()}).Error; err != nil {
			respondError(c, fmt.Errorf("%w: update quest: %v", domain.ErrStorage, err))
			return
		}
		quest.Status = req.Status
		pub.Publish(realtime.RoomCampaign, realtime.EventQuestUpdate, QuestEvent{Action: "update", QuestID: quest.ID, Title: quest.Title, Status: quest.Status})
		logrus.WithFields(logrus.Fields{"quest_id": quest.ID, "status": quest.Status}).Info("Quest updated")
		c.JSON(http.StatusOK, gin.H{"success": true, "quest": quest})
	}
}
