package api

import (
	"errors"                      // Error classification
	"fmt"                         // Error wrapping
	"net/http"                    // HTTP status codes
	"strconv"                     // Token ids
	"tabletop/internal/battlemap" // Token cleanup on delete
	"tabletop/internal/domain"    // Importing domain models
	"tabletop/internal/realtime"  // Broadcasts
	"time"                        // Update timestamp

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// CharacterRequest carries every editable sheet field
type CharacterRequest struct {
	Name  string `json:"name" binding:"required,max=100"`
	Class string `json:"class" binding:"max=64"`
	Race  string `json:"race" binding:"max=64"`
	Level int    `json:"level" binding:"min=1,max=20"`

	HPCurrent int `json:"hp_current" binding:"min=0,ltefield=HPMax"`
	HPMax     int `json:"hp_max" binding:"min=1,max=9999"`
	AC        int `json:"ac" binding:"min=0,max=50"`

	Strength     int `json:"strength" binding:"min=1,max=30"`
	Dexterity    int `json:"dexterity" binding:"min=1,max=30"`
	Constitution int `json:"constitution" binding:"min=1,max=30"`
	Intelligence int `json:"intelligence" binding:"min=1,max=30"`
	Wisdom       int `json:"wisdom" binding:"min=1,max=30"`
	Charisma     int `json:"charisma" binding:"min=1,max=30"`

	Skills        domain.Skills        `json:"skills" binding:"max=64,dive,keys,min=1,max=32,endkeys,min=-30,max=30"`
	SavingThrows  domain.SavingThrows  `json:"saving_throws" binding:"max=6,dive,keys,oneof=strength dexterity constitution intelligence wisdom charisma,endkeys,min=-30,max=30"`
	Equipment     domain.Equipment     `json:"equipment" binding:"max=200,dive"`
	StatusEffects domain.StatusEffects `json:"status_effects" binding:"max=32,dive,required,max=64"`
	Notes         string               `json:"notes" binding:"max=20000"`
	ImageURL      string               `json:"image_url" binding:"omitempty,max=255,uri"`
}

// newCharacterRequest returns the defaults of a fresh level 1 sheet
func newCharacterRequest() CharacterRequest {
	return CharacterRequest{
		Level: 1, HPCurrent: 10, HPMax: 10, AC: 10,
		Strength: 10, Dexterity: 10, Constitution: 10, Intelligence: 10, Wisdom: 10, Charisma: 10,
	}
}

// requestFrom pre-fills a request with the stored sheet so omitted fields keep their value.
// Maps stay nil because decoding JSON into a non-nil map merges instead of replacing;
// keepMaps restores them when the body omits them.
func requestFrom(ch *domain.Character) CharacterRequest {
	return CharacterRequest{
		Name: ch.Name, Class: ch.Class, Race: ch.Race, Level: ch.Level,
		HPCurrent: ch.HPCurrent, HPMax: ch.HPMax, AC: ch.AC,
		Strength: ch.Strength, Dexterity: ch.Dexterity, Constitution: ch.Constitution,
		Intelligence: ch.Intelligence, Wisdom: ch.Wisdom, Charisma: ch.Charisma,
		Equipment: ch.Equipment, StatusEffects: ch.StatusEffects, Notes: ch.Notes, ImageURL: ch.ImageURL,
	}
}

func (r *CharacterRequest) keepMaps(ch *domain.Character) {
	if r.Skills == nil {
		r.Skills = ch.Skills
	}
	if r.SavingThrows == nil {
		r.SavingThrows = ch.SavingThrows
	}
}

// apply copies the sheet fields onto the character
func (r *CharacterRequest) apply(ch *domain.Character) {
	ch.Name, ch.Class, ch.Race, ch.Level = r.Name, r.Class, r.Race, r.Level
	ch.HPCurrent, ch.HPMax, ch.AC = r.HPCurrent, r.HPMax, r.AC
	ch.Strength, ch.Dexterity, ch.Constitution = r.Strength, r.Dexterity, r.Constitution
	ch.Intelligence, ch.Wisdom, ch.Charisma = r.Intelligence, r.Wisdom, r.Charisma
	ch.Skills, ch.SavingThrows = r.Skills, r.SavingThrows
	ch.Equipment, ch.StatusEffects = r.Equipment, r.StatusEffects
	ch.Notes, ch.ImageURL = r.Notes, r.ImageURL
	ch.Normalize()
}

// CharacterView is a character with the owner's username, as listed to the DM
type CharacterView struct {
	domain.Character
	Owner string `json:"owner"`
}

// CharacterEvent is the payload of character_update
type CharacterEvent struct {
	Action      string `json:"action"`
	CharacterID uint   `json:"character_id"`
	UpdatedBy   string `json:"updated_by"`
}

// loadManagedCharacter fetches a character the caller may modify
func loadManagedCharacter(db *gorm.DB, id domain.Identity, characterID uint) (*domain.Character, error) {
	var ch domain.Character
	if err := db.First(&ch, characterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: character %d", domain.ErrNotFound, characterID)
		}
		return nil, fmt.Errorf("%w: load character: %v", domain.ErrStorage, err)
	}
	if !id.CanManage(ch.UserID) {
		return nil, fmt.Errorf("%w: character %d belongs to another player", domain.ErrForbidden, characterID)
	}
	return &ch, nil
}

// ListCharactersHandler lists every character for the DM and the caller's own otherwise
func ListCharactersHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := identity(c)
		var characters []domain.Character
		q := db.WithContext(c.Request.Context()).Preload("User").Order("name").Order("id")
		// Players only see their own sheets
		if !id.IsDM() {
			q = q.Where("user_id = ?", id.UserID)
		}
		if err := q.Find(&characters).Error; err != nil {
			respondError(c, fmt.Errorf("%w: list characters: %v", domain.ErrStorage, err))
			return
		}
		views := make([]CharacterView, len(characters))
		for i, ch := range characters {
			views[i] = CharacterView{Character: ch, Owner: ch.User.Username}
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "characters": views})
	}
}

// CreateCharacterHandler creates a character owned by the caller
func CreateCharacterHandler(db *gorm.DB, pub realtime.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := identity(c)
		req := newCharacterRequest() // Omitted fields keep the defaults
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		ch := domain.Character{UserID: id.UserID}
		req.apply(&ch)
		if err := db.WithContext(c.Request.Context()).Create(&ch).Error; err != nil {
			respondError(c, fmt.Errorf("%w: create character: %v", domain.ErrStorage, err))
			return
		}
		pub.Publish(realtime.RoomCampaign, realtime.EventCharacterUpdate, CharacterEvent{Action: "create", CharacterID: ch.ID, UpdatedBy: id.Username})
		logrus.WithFields(logrus.Fields{"character_id": ch.ID, "owner": id.Username}).Info("Character created")
		c.JSON(http.StatusCreated, gin.H{"success": true, "character_id": ch.ID})
	}
}

// UpdateCharacterHandler replaces the sheet fields of a character in one statement
func UpdateCharacterHandler(db *gorm.DB, pub realtime.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		characterID, ok := idParam(c, "id")
		if !ok {
			return
		}
		id := identity(c)
		gdb := db.WithContext(c.Request.Context())
		ch, err := loadManagedCharacter(gdb, id, characterID)
		if err != nil {
			respondError(c, err)
			return
		}
		req := requestFrom(ch)
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		req.keepMaps(ch)
		req.apply(ch)
		ch.UpdatedAt = time.Now()
		if err := gdb.Model(ch).Select(domain.SheetColumns).Updates(ch).Error; err != nil {
			respondError(c, fmt.Errorf("%w: update character: %v", domain.ErrStorage, err))
			return
		}
		pub.Publish(realtime.RoomCampaign, realtime.EventCharacterUpdate, CharacterEvent{Action: "update", CharacterID: ch.ID, UpdatedBy: id.Username})
		logrus.WithFields(logrus.Fields{"character_id": ch.ID, "updated_by": id.Username}).Info("Character updated")
		c.JSON(http.StatusOK, gin.H{"success": true, "character": ch})
	}
}

// DeleteCharacterHandler removes a character and its map token
func DeleteCharacterHandler(db *gorm.DB, pub realtime.Publisher, maps *battlemap.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		characterID, ok := idParam(c, "id")
		if !ok {
			return
		}
		id := identity(c)
		gdb := db.WithContext(c.Request.Context())
		ch, err := loadManagedCharacter(gdb, id, characterID)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := gdb.Delete(ch).Error; err != nil {
			respondError(c, fmt.Errorf("%w: delete character: %v", domain.ErrStorage, err))
			return
		}
		maps.RemoveToken(strconv.FormatUint(uint64(ch.ID), 10))
		pub.Publish(realtime.RoomCampaign, realtime.EventCharacterUpdate, CharacterEvent{Action: "delete", CharacterID: ch.ID, UpdatedBy: id.Username})
		logrus.WithFields(logrus.Fields{"character_id": ch.ID, "deleted_by": id.Username}).Info("Character deleted")
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// CharacterSheetHandler returns a character with its ability modifiers
func CharacterSheetHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		characterID, ok := idParam(c, "id")
		if !ok {
			return
		}
		ch, err := loadManagedCharacter(db.WithContext(c.Request.Context()), identity(c), characterID)
		if err != nil {
			respondError(c, err)
			return
		}
		ch.Normalize()
		c.JSON(http.StatusOK, gin.H{"success": true, "character": ch, "modifiers": ch.AbilityModifiers()})
	}
}
