// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port             string
	DBPath           string
	SessionTTL       time.Duration
	AllowedOrigins   []string
	DecisionEndpoint string // base URL of the external decision service; empty = engine inert
	Modal            ModalConfig
	RulesPath        string // optional YAML page/drawer marker rules
	Debug            bool
}

// ModalConfig carries the presentation colors forwarded to the shim.
type ModalConfig struct {
	BackgroundColor string
	TextColor       string
}

// Load reads configuration from environment variables.
//
// A missing or unparseable DECISION_ENDPOINT is not fatal: the server still
// starts, records events, and the trigger gate denies every request for the
// lifetime of the process. That mirrors the "abort silently, stay inert"
// contract for configuration errors.
func Load() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		DBPath:           getEnv("DB_PATH", "./data/engage.db"),
		SessionTTL:       getEnvDuration("SESSION_TTL", 60*time.Minute),
		AllowedOrigins:   splitOrigins(getEnv("ALLOWED_ORIGINS", "*")),
		DecisionEndpoint: getEnv("DECISION_ENDPOINT", ""),
		Modal: ModalConfig{
			BackgroundColor: getEnv("MODAL_BACKGROUND_COLOR", "#FFFFFF"),
			TextColor:       getEnv("MODAL_TEXT_COLOR", "#000000"),
		},
		RulesPath: getEnv("RULES_PATH", ""),
		Debug:     getEnvBool("DEBUG", false),
	}

	if cfg.DecisionEndpoint != "" {
		if _, err := url.ParseRequestURI(cfg.DecisionEndpoint); err != nil {
			slog.Error("Invalid DECISION_ENDPOINT, engagement engine will stay inert",
				"endpoint", cfg.DecisionEndpoint, "error", err)
			cfg.DecisionEndpoint = ""
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.Modal.BackgroundColor == "" || c.Modal.TextColor == "" {
		return fmt.Errorf("modal colors cannot be empty")
	}
	return nil
}

// DecisionConfigured reports whether a usable decision endpoint is set.
func (c *Config) DecisionConfigured() bool {
	return c.DecisionEndpoint != ""
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" || strings.Contains(o, "localhost") || strings.Contains(o, "127.0.0.1") {
			return true
		}
	}
	return false
}

func splitOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		out = []string{"*"}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	// Bare integers are taken as minutes.
	if n, err := strconv.Atoi(value); err == nil && n > 0 {
		return time.Duration(n) * time.Minute
	}
	return fallback
}
