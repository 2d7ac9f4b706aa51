// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Process settings
	Env      string // "development", "staging", "production"
	LogLevel string
	OpsPort  string // HTTP port for health, metrics and inspection endpoints

	// Chat transport
	BotToken       string // Bot credential for the interactive agent
	ChatAPIURL     string // Base URL of the chat HTTP API
	AnnounceChatID int64  // Chat that receives new-room announcements (optional)

	// Durable state
	QueueFile    string // JSON mailbox shared with the provisioning agent
	RegistryFile string // JSON room registry
	DatabaseURL  string // PostgreSQL cache (optional, best effort)

	// Deal settings
	RateFloor      int64    // Minimum accepted exchange rate
	EscrowGroup    string   // Group the provisioner clones permissions from (optional)
	BypassTxHash   string   // Deposit hash accepted without ledger lookup (non-production only)
	AdminUsernames []string // Operators allowed to use kick and link

	// Ledger lookup
	ScanAPIURL string // bscscan-style JSON API base URL
	ScanAPIKey string

	// Poll cadences
	RoomPollInterval   time.Duration // interactive agent: discovery of newly provisioned rooms
	QueuePollInterval  time.Duration // provisioning agent: pending request scan
	ResultPollInterval time.Duration // interactive agent: waiting on a provisioned room
	ResultPollAttempts int

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint for traces (optional)
}

const (
	DefaultOpsPort            = "8081"
	DefaultEnv                = "development"
	DefaultLogLevel           = "info"
	DefaultChatAPIURL         = "https://api.telegram.org"
	DefaultScanAPIURL         = "https://api.bscscan.com/api"
	DefaultQueueFile          = "deal_queue.json"
	DefaultRegistryFile       = "rooms.json"
	DefaultRateFloor          = 85
	DefaultRoomPollInterval   = 500 * time.Millisecond
	DefaultQueuePollInterval  = 2 * time.Second
	DefaultResultPollInterval = 200 * time.Millisecond
	DefaultResultPollAttempts = 60
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Env:                getEnv("ENV", DefaultEnv),
		LogLevel:           getEnv("LOG_LEVEL", DefaultLogLevel),
		OpsPort:            getEnv("OPS_PORT", DefaultOpsPort),
		BotToken:           os.Getenv("BOT_TOKEN"), // Required, no default
		ChatAPIURL:         getEnv("CHAT_API_URL", DefaultChatAPIURL),
		AnnounceChatID:     getEnvInt64("ANNOUNCE_CHAT_ID", 0),
		QueueFile:          getEnv("QUEUE_FILE", DefaultQueueFile),
		RegistryFile:       getEnv("REGISTRY_FILE", DefaultRegistryFile),
		DatabaseURL:        os.Getenv("DATABASE_URL"), // Optional, registry cache only
		RateFloor:          getEnvInt64("RATE_FLOOR", DefaultRateFloor),
		AdminUsernames:     getEnvList("ADMIN_USERNAMES"),
		EscrowGroup:        os.Getenv("ESCROW_GROUP"),
		BypassTxHash:       os.Getenv("BYPASS_TX_HASH"),
		ScanAPIURL:         getEnv("SCAN_API_URL", DefaultScanAPIURL),
		ScanAPIKey:         os.Getenv("SCAN_API_KEY"),
		RoomPollInterval:   getEnvDuration("ROOM_POLL_INTERVAL", DefaultRoomPollInterval),
		QueuePollInterval:  getEnvDuration("QUEUE_POLL_INTERVAL", DefaultQueuePollInterval),
		ResultPollInterval: getEnvDuration("RESULT_POLL_INTERVAL", DefaultResultPollInterval),
		ResultPollAttempts: int(getEnvInt64("RESULT_POLL_ATTEMPTS", DefaultResultPollAttempts)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}

	if c.QueueFile == "" {
		return fmt.Errorf("QUEUE_FILE must not be empty")
	}

	if c.RateFloor < 1 {
		return fmt.Errorf("RATE_FLOOR must be at least 1")
	}

	if c.ResultPollAttempts < 1 {
		return fmt.Errorf("RESULT_POLL_ATTEMPTS must be at least 1")
	}

	// The bypass hash skips ledger verification entirely. It exists for
	// staging drills and must never be active in production.
	if c.IsProduction() && c.BypassTxHash != "" {
		return fmt.Errorf("BYPASS_TX_HASH must not be set in production")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
