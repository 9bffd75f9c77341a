package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds everything the gateway needs at construction time.
// Store names, the precache manifest and the API base are injected here
// instead of living as package-level constants so tests can swap them.
type Config struct {
	Port        string
	Environment string

	// Persistence for cache stores, pending mutations and notifications
	DBDriver   string // sqlite or postgres
	DBPath     string // sqlite file path (":memory:" allowed)
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Upstream origins
	BackendBaseURL  string // REST API origin (watchlist, prices, alerts, sync)
	FrontendBaseURL string // app origin serving pages and static assets
	APIPrefix       string // request paths under this prefix are API traffic

	// Cache store roles
	AppVersion       string // rotates the static store name on deploy
	RuntimeStoreName string
	OfflinePath      string
	PrecacheManifest []string

	// Scheduling knobs (the host side of periodic/background sync)
	AlertSyncInterval time.Duration
	ProbeInterval     time.Duration
	PriceFetchTimeout time.Duration

	JWTSecret string
}

var AppConfig *Config
var DB *gorm.DB

// LoadConfig loads environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DBDriver:   getEnv("DB_DRIVER", "sqlite"),
		DBPath:     getEnv("DB_PATH", "data/edge_gateway.db"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "edge_gateway"),

		BackendBaseURL:  getEnv("BACKEND_BASE_URL", "http://localhost:3001"),
		FrontendBaseURL: getEnv("FRONTEND_BASE_URL", "http://localhost:3000"),
		APIPrefix:       getEnv("API_PREFIX", "/api/"),

		AppVersion:       getEnv("APP_VERSION", "v1"),
		RuntimeStoreName: getEnv("RUNTIME_STORE_NAME", "runtime"),
		OfflinePath:      getEnv("OFFLINE_PATH", "/offline"),
		PrecacheManifest: getEnvList("PRECACHE_MANIFEST", []string{
			"/",
			"/dashboard",
			"/watchlist",
			"/portfolio",
			"/alerts",
			"/offline",
			"/manifest.json",
		}),

		AlertSyncInterval: getEnvDuration("ALERT_SYNC_INTERVAL", 5*time.Minute),
		ProbeInterval:     getEnvDuration("PROBE_INTERVAL", 30*time.Second),
		PriceFetchTimeout: getEnvDuration("PRICE_FETCH_TIMEOUT", 10*time.Second),

		JWTSecret: getEnv("JWT_SECRET", "your-secret-key"),
	}

	AppConfig = config
	return config, nil
}

// StaticStoreName returns the version-tagged static store name. A new
// AppVersion rotates the name, which is what makes old stores collectable
// at activation.
func (c *Config) StaticStoreName() string {
	return "precache-" + c.AppVersion
}

// InitDB initializes database connection
func InitDB() (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if AppConfig.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	}

	var db *gorm.DB
	var err error

	switch AppConfig.DBDriver {
	case "postgres":
		log.Printf("Connecting to database: host=%s port=%s user=%s dbname=%s",
			maskHost(AppConfig.DBHost),
			AppConfig.DBPort,
			AppConfig.DBUser,
			AppConfig.DBName,
		)
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=require TimeZone=UTC",
			AppConfig.DBHost,
			AppConfig.DBUser,
			AppConfig.DBPassword,
			AppConfig.DBName,
			AppConfig.DBPort,
		)
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
	default:
		log.Printf("Opening sqlite database: %s", AppConfig.DBPath)
		db, err = gorm.Open(sqlite.Open(AppConfig.DBPath), gormConfig)
	}

	if err != nil {
		log.Printf("Database connection error: %v", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection with ping
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Failed to get underlying database: %v", err)
		return nil, fmt.Errorf("failed to get database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		log.Printf("Database ping failed: %v", err)
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	log.Printf("Database connection verified successfully")
	DB = db
	return db, nil
}

// maskHost masks host for logging, preserving domain structure
func maskHost(host string) string {
	if len(host) <= 3 {
		return "***"
	}
	if len(host) <= 15 {
		return host[:3] + "***"
	}
	return host[:8] + "***" + host[len(host)-10:]
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvList gets a comma-separated environment variable as a slice
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// getEnvDuration gets an environment variable as seconds or returns a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		log.Printf("Warning: invalid %s value %q, using default", key, value)
		return defaultValue
	}
	return time.Duration(seconds) * time.Second
}
