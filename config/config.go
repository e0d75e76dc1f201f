package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Discord configuration
	DiscordToken   string
	DiscordGuildID string // optional, registers commands to a single guild

	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// Lavalink node
	LavalinkName     string
	LavalinkHost     string
	LavalinkPort     int
	LavalinkPassword string
	LavalinkSecure   bool

	// Playback configuration
	SearchPlatform      string
	DefaultVolume       int
	ReadyTimeout        time.Duration
	JoinTimeout         time.Duration
	AloneTimeout        time.Duration
	HistoryLimit        int
	NotifyRatePerSecond float64
	SearchCacheSize     int
	SearchCacheTTL      time.Duration

	// Messaging
	NATSServers string // empty disables event publishing

	// OpenTelemetry configuration
	OTelEnabled              bool
	OTelServiceName          string
	OTelExporterType         string // "console", "otlp" or "none"
	OTelOTLPEndpoint         string
	OTelExportIntervalMillis int

	// Logging
	LogLevel string

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		// A missing .env is fine; real deployments use the environment
		_ = godotenv.Load()

		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		// Discord
		DiscordToken:   os.Getenv("DISCORD_TOKEN"),
		DiscordGuildID: os.Getenv("DISCORD_GUILD_ID"),

		// Database
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: getEnvOrDefault("DATABASE_NAME", "jukebox"),

		// Lavalink
		LavalinkName:     getEnvOrDefault("LAVALINK_NAME", "main"),
		LavalinkHost:     getEnvOrDefault("LAVALINK_HOST", "localhost"),
		LavalinkPort:     getIntOrDefault("LAVALINK_PORT", 2333),
		LavalinkPassword: getEnvOrDefault("LAVALINK_PASSWORD", "youshallnotpass"),
		LavalinkSecure:   os.Getenv("LAVALINK_SECURE") == "true",

		// Playback settings with defaults
		SearchPlatform:      getEnvOrDefault("SEARCH_PLATFORM", "ytmsearch"),
		DefaultVolume:       getIntOrDefault("DEFAULT_VOLUME", 100),
		ReadyTimeout:        time.Duration(getIntOrDefault("READY_TIMEOUT_MS", 2000)) * time.Millisecond,
		JoinTimeout:         time.Duration(getIntOrDefault("JOIN_TIMEOUT_MS", 10000)) * time.Millisecond,
		AloneTimeout:        time.Duration(getIntOrDefault("ALONE_TIMEOUT_SECONDS", 60)) * time.Second,
		HistoryLimit:        getIntOrDefault("HISTORY_LIMIT", 20),
		NotifyRatePerSecond: 2,
		SearchCacheSize:     getIntOrDefault("SEARCH_CACHE_SIZE", 256),
		SearchCacheTTL:      time.Duration(getIntOrDefault("SEARCH_CACHE_TTL_SECONDS", 600)) * time.Second,

		// NATS
		NATSServers: os.Getenv("NATS_SERVERS"),

		// OpenTelemetry
		OTelEnabled:              os.Getenv("OTEL_ENABLED") == "true",
		OTelServiceName:          getEnvOrDefault("OTEL_SERVICE_NAME", "jukebox"),
		OTelExporterType:         getEnvOrDefault("OTEL_EXPORTER_TYPE", "console"),
		OTelOTLPEndpoint:         getEnvOrDefault("OTEL_OTLP_ENDPOINT", "localhost:4317"),
		OTelExportIntervalMillis: getIntOrDefault("OTEL_EXPORT_INTERVAL_MS", 30000),

		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		Environment: os.Getenv("ENVIRONMENT"),
	}

	if rate := os.Getenv("NOTIFY_RATE_PER_SECOND"); rate != "" {
		if parsed, err := strconv.ParseFloat(rate, 64); err == nil && parsed > 0 {
			config.NotifyRatePerSecond = parsed
		}
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.DefaultVolume < 0 || c.DefaultVolume > 1000 {
		return fmt.Errorf("DEFAULT_VOLUME must be between 0 and 1000, got %d", c.DefaultVolume)
	}
	switch c.OTelExporterType {
	case "console", "otlp", "none":
	default:
		return fmt.Errorf("OTEL_EXPORTER_TYPE must be console, otlp or none, got %q", c.OTelExporterType)
	}

	if c.Environment == "test" {
		return nil
	}

	// Validate required configuration
	if c.DiscordToken == "" {
		return fmt.Errorf("DISCORD_TOKEN is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.LavalinkPassword == "" {
		return fmt.Errorf("LAVALINK_PASSWORD is required")
	}
	return nil
}

// IsProduction reports whether the bot runs in production mode
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// NewTestConfig returns a configuration suitable for tests
func NewTestConfig() *Config {
	return &Config{
		DatabaseName:             "jukebox_test",
		LavalinkName:             "test",
		LavalinkHost:             "localhost",
		LavalinkPort:             2333,
		LavalinkPassword:         "youshallnotpass",
		SearchPlatform:           "ytmsearch",
		DefaultVolume:            100,
		ReadyTimeout:             2 * time.Second,
		JoinTimeout:              10 * time.Second,
		AloneTimeout:             time.Minute,
		HistoryLimit:             20,
		NotifyRatePerSecond:      2,
		SearchCacheSize:          256,
		SearchCacheTTL:           10 * time.Minute,
		OTelServiceName:          "jukebox-test",
		OTelExporterType:         "none",
		OTelExportIntervalMillis: 30000,
		LogLevel:                 "debug",
		Environment:              "test",
	}
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}
