package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all environment backed configuration for the ops-assistant server.
type Config struct {
	// HTTP Server
	HTTPPort    int `env:"HTTP_PORT" envDefault:"3000"`
	MetricsPort int `env:"METRICS_PORT" envDefault:"9091"`

	// Dataset database (read-only)
	DBPath       string        `env:"DB_PATH,notEmpty"`
	QueryTimeout time.Duration `env:"QUERY_TIMEOUT" envDefault:"10s"`
	MaxQueryRows int           `env:"MAX_QUERY_ROWS" envDefault:"500"`

	// Conversation store. When empty, conversations live in memory and are
	// lost on restart.
	ConversationsDBPath string `env:"CONVERSATIONS_DB_PATH"`

	// Model provider
	OpenAIAPIKey  string        `env:"OPENAI_API_KEY,notEmpty"`
	OpenAIBaseURL string        `env:"OPENAI_BASE_URL"`
	OpenAIModel   string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	ModelTimeout  time.Duration `env:"MODEL_TIMEOUT" envDefault:"120s"`
	MaxToolRounds int           `env:"MAX_TOOL_ROUNDS" envDefault:"10"`

	// Auth / rate limiting
	APIKeys          []string `env:"API_KEYS" envSeparator:","`
	RateLimitPerHour int      `env:"RATE_LIMIT_PER_HOUR" envDefault:"20"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// Load parses environment variables into Config and performs minimal validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	keys := make([]string, 0, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	cfg.APIKeys = keys
	if len(cfg.APIKeys) == 0 {
		return nil, errors.New("API_KEYS must contain at least one key")
	}

	if cfg.RateLimitPerHour <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_PER_HOUR must be positive, got %d", cfg.RateLimitPerHour)
	}
	if cfg.MaxToolRounds <= 0 {
		return nil, fmt.Errorf("MAX_TOOL_ROUNDS must be positive, got %d", cfg.MaxToolRounds)
	}
	if cfg.MaxQueryRows <= 0 {
		return nil, fmt.Errorf("MAX_QUERY_ROWS must be positive, got %d", cfg.MaxQueryRows)
	}

	return cfg, nil
}

// KeySet returns the configured API keys as a set for membership checks.
func (c *Config) KeySet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.APIKeys))
	for _, k := range c.APIKeys {
		set[k] = struct{}{}
	}
	return set
}
