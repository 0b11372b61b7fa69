package main

import (
	"flag"                     // Command line flags
	"os"                       // Database directory
	"path/filepath"            // Database directory
	"tabletop/internal/config" // Custom import path (Config)
	"tabletop/internal/db"     // Custom import path (Database)

	"github.com/sirupsen/logrus" // Logging
	"gorm.io/gorm/logger"        // GORM log level
)

// Main entry point for migration
func main() {
	seed := flag.Bool("seed", false, "create the default dm/player accounts and notebook entries on an empty database")
	flag.Parse()

	cfg, err := config.LoadConfig() // Load configuration
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if cfg.DBDriver == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			logrus.Fatalf("failed to create database directory: %v", err)
		}
	}
	gdb, err := db.Open(cfg.DBDriver, cfg.DSN(), logger.Warn)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}
	db.Migrate(gdb, *seed)
}
