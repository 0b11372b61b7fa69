package main

import (
	"context"                     // Redis ping and shutdown deadline
	"errors"                      // Server close detection
	"net/http"                    // HTTP server
	"os"                          // Upload directory
	"os/signal"                   // Graceful shutdown
	"path/filepath"               // SQLite directory
	"syscall"                     // Termination signals
	"tabletop/internal/api"       // HTTP handlers and router
	"tabletop/internal/battlemap" // Battle map service
	"tabletop/internal/chat"      // Chat and dice
	"tabletop/internal/combat"    // Combat tracker
	"tabletop/internal/config"    // Configuration
	"tabletop/internal/db"        // Database setup
	"tabletop/internal/dice"      // Dice roller
	"tabletop/internal/realtime"  // Socket hub
	"tabletop/internal/treasury"  // Gold ledger
	"time"                        // Timeouts

	ratelimit "github.com/JGLTechnologies/gin-rate-limit" // Login rate limiting
	"github.com/gin-gonic/gin"                            // Gin web framework
	"github.com/redis/go-redis/v9"                        // Redis client
	"github.com/sirupsen/logrus"                          // Logrus for structured logging
	"gorm.io/gorm/logger"                                 // GORM log level
)

// Main function to set up and run the server
func main() {
	cfg, err := config.LoadConfig() // Load configuration
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{}) // Machine-readable logs in production
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	} else {
		logrus.Warnf("unknown LOG_LEVEL %q, using info", cfg.LogLevel)
	}

	// Connect to the database and make sure the schema is current
	if cfg.DBDriver == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			logrus.Fatalf("failed to create database directory: %v", err)
		}
	}
	gormLevel := logger.Warn
	if cfg.IsProd {
		gormLevel = logger.Error
	}
	gdb, err := db.Open(cfg.DBDriver, cfg.DSN(), gormLevel)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}
	db.Migrate(gdb, false)

	// Setup Redis client, optional
	var redisClient *redis.Client
	var limitStore ratelimit.Store
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr, // Redis server address
			Password: cfg.RedisPass, // Redis password
			DB:       cfg.RedisDB,   // Redis database number
		})
		// Test Redis connection
		if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
			logrus.Fatalf("failed to connect to Redis: %v", err)
		}
		limitStore = ratelimit.RedisStore(&ratelimit.RedisOptions{
			RedisClient: redisClient,
			Rate:        time.Minute,
			Limit:       cfg.RateLimitPerMinute,
		})
	} else {
		logrus.Info("REDIS_ADDR not set, caching disabled and rate limits kept in memory")
		limitStore = ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
			Rate:  time.Minute,
			Limit: cfg.RateLimitPerMinute,
		})
	}

	// Uploaded files live in one flat directory
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		logrus.Fatalf("failed to create upload directory: %v", err)
	}

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Wire services
	hub := realtime.NewHub()
	router := api.NewRouter(api.Deps{
		Config:    cfg,
		DB:        gdb,
		Redis:     redisClient,
		Hub:       hub,
		Publisher: hub,
		Chat:      chat.NewService(gdb, redisClient, hub, dice.NewRoller()),
		Combat:    combat.NewService(gdb, hub),
		Maps:      battlemap.NewService(gdb, hub),
		Treasury:  treasury.NewService(gdb, redisClient, hub),
		RateLimit: limitStore,
		Metrics:   true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logrus.WithField("port", cfg.AppPort).Info("Server running") // Log server start
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logrus.Info("Server exited")
}
