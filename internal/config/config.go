package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds application configuration values loaded from environment variables.
type Config struct {
	HTTPPort        string
	StoreDriver     string
	DatabaseURL     string
	SQLitePath      string
	JWTSecret       string // Empty disables authentication
	TokenExpiration time.Duration
	AllowedOrigins  []string
	RAGEndpointURL  string // Empty disables the ask endpoint
	RAGTimeout      time.Duration
	RAGTopK         int
}

// LoadConfig loads configuration from environment variables.
// It reads ENV_FILE (default .env) first; variables already set in the environment win.
func LoadConfig() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil {
		log.Printf("Warning: Could not load %s file. Using environment variables only. %v", envFile, err)
	}

	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		StoreDriver:     strings.ToLower(getEnv("STORE_DRIVER", DriverSQLite)),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		SQLitePath:      getEnv("SQLITE_PATH", "./data/ragchat.db"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		TokenExpiration: time.Hour * time.Duration(getEnvInt("JWT_EXPIRATION_HOURS", 24)),
		AllowedOrigins:  splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		RAGEndpointURL:  getEnv("RAG_ENDPOINT_URL", ""),
		RAGTimeout:      time.Second * time.Duration(getEnvInt("RAG_TIMEOUT_SECONDS", 30)),
		RAGTopK:         getEnvInt("RAG_TOP_K", 5),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Printf("Loaded config: Port=%s, Store=%s, Auth=%t, RAG=%t, Origins=%v",
		cfg.HTTPPort, cfg.StoreDriver, cfg.AuthEnabled(), cfg.RAGEndpointURL != "", cfg.AllowedOrigins)

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTPPort == "" {
		errs = append(errs, errors.New("HTTP_PORT must not be empty"))
	}
	switch c.StoreDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite store"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.StoreDriver))
	}
	if c.TokenExpiration <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRATION_HOURS must be positive"))
	}
	if c.RAGTimeout <= 0 {
		errs = append(errs, errors.New("RAG_TIMEOUT_SECONDS must be positive"))
	}
	if c.RAGTopK <= 0 {
		errs = append(errs, errors.New("RAG_TOP_K must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// AuthEnabled reports whether /v1 routes require a bearer token.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := getEnv(key, strconv.Itoa(fallback))
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		log.Printf("Warning: Invalid %s '%s', using default %d. Error: %v", key, raw, fallback, err)
		return fallback
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
