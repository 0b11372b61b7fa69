package db

import (
	"fmt"                      // Error wrapping
	"tabletop/internal/domain" // Domain models and errors

	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// Models lists every persisted model in dependency order
var Models = []any{
	&domain.User{},
	&domain.Character{},
	&domain.CampaignEntry{},
	&domain.ChatMessage{},
	&domain.UploadedFile{},
	&domain.Quest{},
	&domain.NPC{},
	&domain.Purse{},
	&domain.LedgerEntry{},
}

// AutoMigrate creates tables, missing foreign keys, constraints, columns and indexes
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Migrate performs automatic migration for the database schema and optionally seeds it
func Migrate(db *gorm.DB, seed bool) {
	if err := AutoMigrate(db); err != nil {
		logrus.Fatalf("%v", err) // Log fatal error if migration fails
	}
	logrus.Info("Migration completed.") // Log successful migration
	if !seed {
		return
	}
	if err := Seed(db); err != nil {
		logrus.Fatalf("seed failed: %v", err)
	}
}
