package config

import (
	"errors" // Validation errors
	"fmt"    // Error wrapping

	"github.com/joho/godotenv"             // For loading .env files
	"github.com/kelseyhightower/envconfig" // Typed environment decoding
)

// Config holds the application configuration
type Config struct {
	AppPort    string `envconfig:"APP_PORT" default:"8080"`     // Application port
	AppVersion string `envconfig:"APP_VERSION" default:"1.0.0"` // Reported by the health endpoint

	DBDriver   string `envconfig:"DB_DRIVER" default:"sqlite"`              // mysql or sqlite
	DBUser     string `envconfig:"DB_USER"`                                 // Database user
	DBPassword string `envconfig:"DB_PASSWORD"`                             // Database password
	DBHost     string `envconfig:"DB_HOST" default:"127.0.0.1"`             // Database host
	DBPort     string `envconfig:"DB_PORT" default:"3306"`                  // Database port
	DBName     string `envconfig:"DB_NAME" default:"tabletop"`              // Database name
	SQLitePath string `envconfig:"SQLITE_PATH" default:"data/tabletop.db"` // SQLite database file

	JWTSecret string `envconfig:"JWT_SECRET"` // JWT secret key, required by the server

	RedisAddr string `envconfig:"REDIS_ADDR"` // Redis server address, empty disables caching
	RedisPass string `envconfig:"REDIS_PASS"` // Redis password
	RedisDB   int    `envconfig:"REDIS_DB"`   // Redis database number

	UploadDir     string `envconfig:"UPLOAD_DIR" default:"uploads"`       // Flat directory for uploaded files
	MaxUploadSize int64  `envconfig:"MAX_UPLOAD_SIZE" default:"16777216"` // 16 MiB

	AllowedOrigins     []string `envconfig:"ALLOWED_ORIGINS"`                    // CORS origins, empty means same-origin only
	RateLimitPerMinute uint     `envconfig:"RATE_LIMIT_PER_MINUTE" default:"20"` // Login/register attempts per IP

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"` // logrus level name
	IsProd   bool   `envconfig:"IS_PROD"`                  // Is production environment
}

// LoadConfig loads configuration from the environment, reading .env first if present
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // Load .env file if present
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings the server cannot start without
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.DBDriver != "mysql" && c.DBDriver != "sqlite" {
		return fmt.Errorf("DB_DRIVER must be mysql or sqlite, got %q", c.DBDriver)
	}
	if c.MaxUploadSize <= 0 {
		return errors.New("MAX_UPLOAD_SIZE must be positive")
	}
	return nil
}

// DSN returns the data source name for the configured driver
func (c *Config) DSN() string {
	if c.DBDriver == "mysql" {
		return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true"
	}
	return c.SQLitePath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}
