package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for assess-gateway
type Config struct {
	Server    ServerConfig
	OpenAI    OpenAIConfig
	Webhook   WebhookConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Script    ScriptConfig
	Env       string
}

// ServerConfig holds HTTP server configuration. StreamStallTimeout bounds
// the wait for the next token on a chat stream.
type ServerConfig struct {
	Host               string
	Port               int
	StreamStallTimeout time.Duration
}

// OpenAIConfig holds upstream LLM service configuration
type OpenAIConfig struct {
	APIKey string
	Model  string
}

// WebhookConfig holds the outbound spreadsheet webhook configuration.
// An empty URL disables delivery; Secret enables payload signing.
type WebhookConfig struct {
	URL    string
	Secret string
}

// RedisConfig holds the shared rate-limit store configuration.
// An empty address selects the in-process store.
type RedisConfig struct {
	Address  string
	Password string
}

// RateLimitConfig holds the two limiter policies and the sweep interval
type RateLimitConfig struct {
	ChatWindow    time.Duration
	ChatMax       int
	SubmitWindow  time.Duration
	SubmitMax     int
	SweepInterval time.Duration
}

// ScriptConfig holds the assessment script location
type ScriptConfig struct {
	Path string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "0.0.0.0"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			StreamStallTimeout: getEnvAsDuration("CHAT_STALL_TIMEOUT", 30*time.Second),
		},
		OpenAI: OpenAIConfig{
			APIKey: getEnv("OPENAI_API_KEY", ""),
			Model:  getEnv("OPENAI_MODEL", ""),
		},
		Webhook: WebhookConfig{
			URL:    getEnv("WEBHOOK_URL", ""),
			Secret: getEnv("WEBHOOK_SECRET", ""),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		RateLimit: RateLimitConfig{
			ChatWindow:    getEnvAsDuration("CHAT_RATE_WINDOW", time.Minute),
			ChatMax:       getEnvAsInt("CHAT_RATE_MAX", 30),
			SubmitWindow:  getEnvAsDuration("SUBMIT_RATE_WINDOW", 10*time.Minute),
			SubmitMax:     getEnvAsInt("SUBMIT_RATE_MAX", 5),
			SweepInterval: getEnvAsDuration("RATE_LIMIT_SWEEP_INTERVAL", time.Minute),
		},
		Script: ScriptConfig{
			Path: getEnv("SCRIPT_PATH", "./script/assessment.yaml"),
		},
		Env: getEnv("APP_ENV", "development"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.RateLimit.ChatMax < 1 || c.RateLimit.SubmitMax < 1 {
		return fmt.Errorf("rate limit maximums must be positive")
	}

	return nil
}

// IsDevelopment reports whether the runtime mode flag is development
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
