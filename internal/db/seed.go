package db

import (
	"encoding/json"            // Notebook values are stored as JSON
	"fmt"                      // Error wrapping
	"tabletop/internal/domain" // Domain models and errors

	"github.com/sirupsen/logrus" // Logging library
	"golang.org/x/crypto/bcrypt" // Password hashing
	"gorm.io/gorm"               // GORM ORM library
)

// DefaultPassword is the password of the seeded accounts; change it after first login
const DefaultPassword = "password"

var seedUsers = []struct {
	Username string
	Role     domain.Role
}{
	{"dm", domain.RoleDM},
	{"player", domain.RolePlayer},
}

var seedNotebook = []struct {
	Key   string
	Value string
}{
	{"location", "The bustling port town of Shadowmar, where pirates gather to plan their next adventure."},
	{"session_notes", "Session 1: The crew arrived in Shadowmar and met Captain Blackwater at the Rusty Anchor tavern. They learned about the legendary treasure hidden on Skull Island."},
	{"npcs", "Captain Blackwater - Grizzled pirate captain with knowledge of Skull Island\nTavern Keeper Martha - Friendly but knows everyone's secrets\nFirst Mate Rodriguez - Blackwater's trusted companion"},
	{"treasure", "Found: 150 gold pieces, Silver compass (magical), Healing potion x2\nLost: Old treasure map (stolen by rival crew)\nQuest: Ancient artifact on Skull Island worth 10,000 gold"},
}

var seedNPCs = []domain.NPC{
	{
		Name: "Captain Blackwater", Location: "The Rusty Anchor", Role: "Quest Giver", Importance: domain.ImportanceHigh,
		Personality: "Grizzled and suspicious, trusts gold more than words",
		Responses: domain.Responses{
			"greeting": {"Sit down before someone sees you standing there.", "You're the crew Martha told me about."},
			"quest":    {"Skull Island keeps what it takes. I mean to take it back.", "Find the map the rivals stole and we sail at dawn."},
		},
	},
	{
		Name: "Martha", Location: "The Rusty Anchor", Role: "Tavern Keeper", Importance: domain.ImportanceMedium,
		Personality: "Friendly, and knows everyone's secrets",
		Responses: domain.Responses{
			"greeting": {"Ale's cheap, gossip's cheaper."},
			"help":     {"Rodriguez drinks alone on the east pier most nights."},
		},
	},
	{
		Name: "First Mate Rodriguez", Location: "Shadowmar docks", Role: "Ally", Importance: domain.ImportanceLow,
		Personality: "Loyal to Blackwater, wary of newcomers",
		Responses: domain.Responses{},
	},
}

// Seed creates the default accounts and notebook entries on an empty database.
// It is a no-op once any user exists.
func Seed(db *gorm.DB) error {
	var count int64
	if err := db.Model(&domain.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		logrus.Info("Users already present, skipping seed")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash default password: %w", err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for _, u := range seedUsers {
			user := domain.User{Username: u.Username, PasswordHash: string(hash), Role: u.Role}
			if err := tx.Create(&user).Error; err != nil {
				return fmt.Errorf("create user %s: %w", u.Username, err)
			}
		}
		for _, n := range seedNotebook {
			value, err := json.Marshal(n.Value)
			if err != nil {
				return err
			}
			entry := domain.CampaignEntry{Key: n.Key, Value: string(value), UpdatedBy: "System"}
			if err := tx.Create(&entry).Error; err != nil {
				return fmt.Errorf("create notebook entry %s: %w", n.Key, err)
			}
		}
		for _, n := range seedNPCs {
			n.UpdatedBy = "System"
			if err := tx.Create(&n).Error; err != nil {
				return fmt.Errorf("create npc %s: %w", n.Name, err)
			}
		}
		logrus.WithField("users", len(seedUsers)).Info("Seeded default accounts")
		return nil
	})
}
