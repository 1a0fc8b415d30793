package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	AppName     = "dermadict"
	EnvFileName = "config.env"
)

const (
	ProviderGateway = "gateway"
	ProviderGemini  = "gemini"
)

// Config holds all runtime settings, read from the environment.
type Config struct {
	Host string
	Port string

	Provider string
	Gateway  GatewayConfig
	Gemini   GeminiConfig

	RequireDisclaimer bool

	Cache CacheConfig

	TelegramBotToken string

	LogFormat string
	LogLevel  string
}

// GatewayConfig configures the OpenAI-compatible chat-completions gateway.
type GatewayConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// GeminiConfig configures the direct Gemini provider.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// CacheConfig configures the optional analysis cache. An empty Path
// disables caching.
type CacheConfig struct {
	Path string
	Key  string
	TTL  time.Duration
}

// Enabled reports whether the analysis cache should be used.
func (c CacheConfig) Enabled() bool {
	return c.Path != ""
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// Credential returns the API key for the selected provider.
func (c *Config) Credential() string {
	if c.Provider == ProviderGemini {
		return c.Gemini.APIKey
	}
	return c.Gateway.APIKey
}

// LoadEnvFile loads environment variables from ./.env and from the config
// file in the user's config directory. Errors are ignored since the files
// may not exist. Variables already set in the environment win.
func LoadEnvFile() {
	_ = godotenv.Load(".env")
	configBase, err := os.UserConfigDir()
	if err != nil {
		return
	}
	_ = godotenv.Load(filepath.Join(configBase, AppName, EnvFileName))
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Host:     os.Getenv("HOST"),
		Port:     getEnv("PORT", "8080"),
		Provider: strings.ToLower(getEnv("AI_PROVIDER", ProviderGateway)),
		Gateway: GatewayConfig{
			BaseURL: strings.TrimRight(getEnv("AI_GATEWAY_URL", "https://ai.gateway.lovable.dev/v1"), "/"),
			APIKey:  os.Getenv("AI_GATEWAY_API_KEY"),
			Model:   getEnv("AI_MODEL", "google/gemini-2.5-flash"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		Cache: CacheConfig{
			Path: os.Getenv("ANALYSIS_CACHE_PATH"),
			Key:  os.Getenv("ANALYSIS_CACHE_KEY"),
		},
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		LogFormat:        strings.ToLower(getEnv("LOG_FORMAT", "console")),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	var err error
	if cfg.Gateway.Temperature, err = strconv.ParseFloat(getEnv("AI_TEMPERATURE", "0.7"), 64); err != nil {
		return nil, fmt.Errorf("AI_TEMPERATURE must be a number: %w", err)
	}
	if cfg.Gateway.Timeout, err = time.ParseDuration(getEnv("AI_TIMEOUT", "0s")); err != nil {
		return nil, fmt.Errorf("AI_TIMEOUT must be a duration: %w", err)
	}
	if cfg.Cache.TTL, err = time.ParseDuration(getEnv("ANALYSIS_CACHE_TTL", "720h")); err != nil {
		return nil, fmt.Errorf("ANALYSIS_CACHE_TTL must be a duration: %w", err)
	}
	if cfg.RequireDisclaimer, err = strconv.ParseBool(getEnv("REQUIRE_DISCLAIMER", "false")); err != nil {
		return nil, fmt.Errorf("REQUIRE_DISCLAIMER must be a boolean: %w", err)
	}

	switch cfg.Provider {
	case ProviderGateway, ProviderGemini:
	default:
		return nil, fmt.Errorf("unknown AI_PROVIDER %q (use %s or %s)", cfg.Provider, ProviderGateway, ProviderGemini)
	}

	if cfg.Cache.Enabled() && cfg.Cache.Key == "" {
		return nil, fmt.Errorf("ANALYSIS_CACHE_KEY is required when ANALYSIS_CACHE_PATH is set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
