// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jason-s-yu/trivia/internal/schedule"
	"github.com/jason-s-yu/trivia/internal/session"
	"gopkg.in/yaml.v3"
)

// GatewayKind selects the remote player/round store.
type GatewayKind string

const (
	GatewayMemory   GatewayKind = "memory"
	GatewayPostgres GatewayKind = "postgres"
)

// PollConfig holds the remote snapshot refresh intervals.
type PollConfig struct {
	Player  time.Duration `yaml:"player"`
	Players time.Duration `yaml:"players"`
}

// Config is the service configuration. Game tuning comes from the optional YAML
// file; deployment settings come from the environment and override the file.
type Config struct {
	Port         string               `yaml:"port"`
	LogLevel     string               `yaml:"log_level"`
	Session      session.Config       `yaml:"session"`
	Rounds       schedule.RoundPolicy `yaml:"rounds"`
	Poll         PollConfig           `yaml:"poll"`
	Languages    []string             `yaml:"languages"`
	QuestionBank string               `yaml:"question_bank"`
	Gateway      GatewayKind          `yaml:"gateway"`
	CORSOrigins  []string             `yaml:"cors_origins"`
	// LobbyIdle closes lobbies nobody has polled for this long. Zero disables eviction.
	LobbyIdle time.Duration `yaml:"lobby_idle"`

	DatabaseURL string        `yaml:"-"`
	RedisAddr   string        `yaml:"-"`
	RedisDB     int           `yaml:"-"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	NATSURL     string        `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:      "8080",
		LogLevel:  "info",
		Session:   session.DefaultConfig(),
		Rounds:    schedule.DefaultRoundPolicy(),
		Poll:      PollConfig{Player: 3 * time.Second, Players: 5 * time.Second},
		Languages: []string{"en", "es", "fr", "de", "it", "pt"},
		Gateway:   GatewayMemory,
		CacheTTL:  2 * time.Second,
		LobbyIdle: 10 * time.Minute,
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when empty) and finally the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.QuestionBank = getEnv("QUESTION_BANK", c.QuestionBank)
	c.Gateway = GatewayKind(getEnv("GATEWAY", string(c.Gateway)))
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisDB = getEnvAsInt("REDIS_DB", c.RedisDB)
	c.NATSURL = getEnv("NATS_URL", c.NATSURL)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("LANGUAGES"); v != "" {
		c.Languages = splitList(v)
	}
}

// Validate reports settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Session.QuestionTime < time.Second {
		return fmt.Errorf("session.question_time must be at least 1s, got %s", c.Session.QuestionTime)
	}
	if c.Session.RevealDelay < 0 {
		return fmt.Errorf("session.reveal_delay must not be negative")
	}
	if c.Poll.Player <= 0 || c.Poll.Players <= 0 {
		return errors.New("poll intervals must be positive")
	}
	if c.LobbyIdle < 0 {
		return errors.New("lobby_idle must not be negative")
	}
	if len(c.Languages) == 0 {
		return errors.New("at least one language must be configured")
	}
	switch c.Gateway {
	case GatewayMemory:
	case GatewayPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres gateway")
		}
	default:
		return fmt.Errorf("unknown gateway %q", c.Gateway)
	}
	return c.Rounds.Validate()
}

// HasLanguage reports whether code is one of the configured languages.
func (c *Config) HasLanguage(code string) bool {
	for _, l := range c.Languages {
		if l == code {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
