// Package config reads the server configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP Server
	Port string

	// Storage
	StoreDriver string
	SQLitePath  string
	DatabaseURL string

	// AMQP replication (disabled when AMQPURL is empty)
	AMQPURL      string
	AMQPExchange string

	// S3 archive (disabled when S3Bucket is empty)
	S3Bucket  string
	AWSRegion string

	// Sheet
	SecretHash        string
	Timezone          string
	SpecialHolder     string
	RetentionInterval time.Duration

	// Browser UI files served under the secret path
	StaticDir string

	LogLevel string
}

// Load reads .env (when present) and then the environment.
func Load() *Config {
	// Missing .env is normal outside local development.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the environment only.
func FromEnv() *Config {
	return &Config{
		Port: getEnv("PORT", "8080"),

		StoreDriver: getEnv("STORE_DRIVER", "sqlite"),
		SQLitePath:  getEnv("SQLITE_PATH", "./data/sheet.db"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "order-sheet"),

		S3Bucket:  getEnv("S3_BUCKET", ""),
		AWSRegion: getEnv("AWS_REGION", "ap-northeast-1"),

		SecretHash:        getEnv("SHEET_SECRET_HASH", ""),
		Timezone:          getEnv("SHEET_TIMEZONE", "Asia/Tokyo"),
		SpecialHolder:     getEnv("SHEET_SPECIAL_HOLDER", ""),
		RetentionInterval: getEnvDuration("RETENTION_INTERVAL", 0),

		StaticDir: getEnv("STATIC_DIR", "./web"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Validate returns every problem at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.StoreDriver {
	case "memory":
	case "sqlite":
		if c.SQLitePath == "" {
			errors = append(errors, "SQLite path cannot be empty when using sqlite store")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres store")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid store driver '%s': must be one of [memory sqlite postgres]", c.StoreDriver))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.S3Bucket != "" && c.AWSRegion == "" {
		errors = append(errors, "AWS_REGION is required when S3_BUCKET is set")
	}

	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.RetentionInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid retention interval %v: must not be negative", c.RetentionInterval))
	} else if c.RetentionInterval > 0 && c.RetentionInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid retention interval %v: must be at least 1 minute", c.RetentionInterval))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
