package api

import (
	"bytes"                      // JSON compaction
	"encoding/json"              // Notebook values are raw JSON
	"fmt"                        // Error wrapping
	"net/http"                   // HTTP status codes
	"tabletop/internal/domain"   // Importing domain models
	"tabletop/internal/realtime" // Broadcasts
	"tabletop/internal/utils"    // Cache helpers
	"time"                       // Update timestamp

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
	"gorm.io/gorm/clause"          // Upsert clause
)

// CampaignKeyURI binds the notebook key path parameter
type CampaignKeyURI struct {
	Key string `uri:"key" binding:"required,campaignkey"`
}

// CampaignValueRequest carries any JSON value
type CampaignValueRequest struct {
	Value json.RawMessage `json:"value" binding:"required"`
}

// CampaignEvent is the payload of campaign_update
type CampaignEvent struct {
	Key       string `json:"key"`
	Value     any    `json:"value"`
	UpdatedBy string `json:"updated_by"`
}

// decodeValue returns the stored JSON decoded, or the raw text if it is not JSON
func decodeValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// GetCampaignHandler returns the whole notebook as {key: value}
func GetCampaignHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		// Generation before the database read, so a concurrent write wins
		gen, genErr := utils.CacheGeneration(ctx, rdb, utils.CacheKeyCampaign)
		if genErr != nil {
			logrus.WithError(genErr).Warn("Campaign cache generation read failed")
		}
		notebook := map[string]any{}
		// Try the cache first
		if hit, err := utils.GetCache(ctx, rdb, utils.CacheKeyCampaign, &notebook); err == nil && hit {
			c.JSON(http.StatusOK, notebook)
			return
		} else if err != nil {
			logrus.WithError(err).Warn("Campaign cache read failed")
		}
		var entries []domain.CampaignEntry
		if err := db.WithContext(ctx).Order("id").Find(&entries).Error; err != nil {
			respondError(c, fmt.Errorf("%w: load campaign: %v", domain.ErrStorage, err))
			return
		}
		notebook = make(map[string]any, len(entries))
		for _, e := range entries {
			notebook[e.Key] = decodeValue(e.Value)
		}
		// Cache the decoded notebook unless it changed meanwhile
		if genErr == nil {
			if _, err := utils.FillCache(ctx, rdb, utils.CacheKeyCampaign, gen, notebook, utils.CacheTTL); err != nil {
				logrus.WithError(err).Warn("Campaign cache write failed")
			}
		}
		c.JSON(http.StatusOK, notebook)
	}
}

// SetCampaignKeyHandler upserts one notebook entry, last write wins
func SetCampaignKeyHandler(db *gorm.DB, rdb *redis.Client, pub realtime.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var uri CampaignKeyURI
		if err := c.ShouldBindUri(&uri); err != nil {
			respondBindError(c, err)
			return
		}
		var req CampaignValueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, req.Value); err != nil {
			respondBindError(c, err)
			return
		}
		id := identity(c)
		ctx := c.Request.Context()
		entry := domain.CampaignEntry{
			Key:       uri.Key,
			Value:     compact.String(),
			UpdatedBy: id.Username,
			UpdatedAt: time.Now().UTC(),
		}
		// Insert or overwrite by key
		err := db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_by", "updated_at"}),
		}).Create(&entry).Error
		if err != nil {
			respondError(c, fmt.Errorf("%w: save campaign entry: %v", domain.ErrStorage, err))
			return
		}
		// Invalidate the notebook cache
		if err := utils.InvalidateCache(ctx, rdb, utils.CacheKeyCampaign); err != nil {
			logrus.WithError(err).Warn("Failed to invalidate campaign cache")
		}
		value := decodeValue(entry.Value)
		pub.Publish(realtime.RoomCampaign, realtime.EventCampaignUpdate, CampaignEvent{Key: entry.Key, Value: value, UpdatedBy: id.Username})
		logrus.WithFields(logrus.Fields{"key": entry.Key, "updated_by": id.Username}).Info("Campaign entry saved")
		c.JSON(http.StatusOK, gin.H{"success": true, "key": entry.Key, "value": value})
	}
}
