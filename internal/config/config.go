package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/janasewa/membership-go/internal/constants"
	"github.com/janasewa/membership-go/internal/util"
)

// Config: full runtime configuration for the membership backend.
type Config struct {
	Server   ServerConfig
	Valkey   ValkeyConfig
	Postgres PostgresConfig
	Member   MemberConfig
	Card     CardConfig
	Logging  LoggingConfig
	Version  string
}

// ServerConfig: HTTP API server settings
type ServerConfig struct {
	Port           int
	AllowedOrigins []string
}

// ValkeyConfig: cache store connection settings
type ValkeyConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// PostgresConfig: authoritative record source connection settings
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// MemberConfig: member lookup cache settings
type MemberConfig struct {
	CacheTTL       time.Duration
	WarmUpOnStart  bool
	WarmUpLimit    int
	WarmUpChunk    int
	WarmUpParallel int
}

// CardConfig: card pipeline settings
type CardConfig struct {
	Issuer           string
	ValidityDays     int
	BatchConcurrency int
}

// LoggingConfig: log level, directory and rotation policy
type LoggingConfig struct {
	Level      string
	Dir        string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Load: loads configuration from .env and environment variables, applying
// defaults and validating the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvInt("SERVER_PORT", 30080),
			AllowedOrigins: parseCommaSeparated(getEnv("CORS_ALLOWED_ORIGINS", "")),
		},
		Valkey: ValkeyConfig{
			Host:     getEnv("CACHE_HOST", "localhost"),
			Port:     getEnvInt("CACHE_PORT", 6379),
			Password: getEnv("CACHE_PASSWORD", ""),
			DB:       getEnvInt("CACHE_DB", 0),
		},
		Postgres: PostgresConfig{
			Host:     getEnv("POSTGRES_HOST", constants.DatabaseDefaults.Host),
			Port:     getEnvInt("POSTGRES_PORT", constants.DatabaseDefaults.Port),
			User:     getEnv("POSTGRES_USER", constants.DatabaseDefaults.User),
			Password: getEnv("POSTGRES_PASSWORD", constants.DatabaseDefaults.Password),
			Database: getEnv("POSTGRES_DB", constants.DatabaseDefaults.Database),
		},
		Member: MemberConfig{
			CacheTTL:       time.Duration(getEnvInt("MEMBER_CACHE_TTL_SECONDS", int(constants.CacheTTL.MemberRecord.Seconds()))) * time.Second,
			WarmUpOnStart:  getEnvBool("MEMBER_WARMUP_ON_START", false),
			WarmUpLimit:    getEnvInt("MEMBER_WARMUP_LIMIT", constants.MemberCacheDefaults.WarmUpLimit),
			WarmUpChunk:    getEnvInt("MEMBER_WARMUP_CHUNK_SIZE", constants.MemberCacheDefaults.WarmUpChunkSize),
			WarmUpParallel: getEnvInt("MEMBER_WARMUP_MAX_GOROUTINES", constants.MemberCacheDefaults.WarmUpMaxGoroutines),
		},
		Card: CardConfig{
			Issuer:           getEnv("CARD_ISSUER", constants.CardDefaults.Issuer),
			ValidityDays:     getEnvInt("CARD_VALIDITY_DAYS", constants.CardDefaults.ValidityDays),
			BatchConcurrency: getEnvInt("CARD_BATCH_CONCURRENCY", constants.CardDefaults.BatchConcurrency),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Dir:        getEnv("LOG_DIR", "logs"),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Version: util.TrimSpace(getEnv("APP_VERSION", "1.0.0")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate: checks required values and sane ranges.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT out of range: %d", c.Server.Port)
	}
	if c.Member.CacheTTL <= 0 {
		return fmt.Errorf("MEMBER_CACHE_TTL_SECONDS must be positive")
	}
	if c.Card.ValidityDays <= 0 {
		return fmt.Errorf("CARD_VALIDITY_DAYS must be positive")
	}
	if c.Card.BatchConcurrency <= 0 {
		return fmt.Errorf("CARD_BATCH_CONCURRENCY must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func parseCommaSeparated(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(value); i++ {
		if i == len(value) || value[i] == ',' {
			item := util.TrimSpace(value[start:i])
			if item != "" {
				out = append(out, item)
			}
			start = i + 1
		}
	}
	return out
}
