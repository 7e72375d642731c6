package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"pickhelper/internal/constants"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	APIBaseURL         string
	ServerPort         string
	LogLevel           string
	AllowedOrigins     []string
	ExternalAPITimeout time.Duration
}

// Load reads .env when present, then the environment. It runs before the
// logger exists, since the log level comes from here.
func Load() (*Config, error) {
	_ = godotenv.Load()

	timeout, err := time.ParseDuration(getEnv("EXTERNAL_API_TIMEOUT", constants.ExternalAPITimeout.String()))
	if err != nil {
		return nil, fmt.Errorf("invalid EXTERNAL_API_TIMEOUT: %w", err)
	}

	cfg := &Config{
		APIBaseURL:         strings.TrimRight(getEnv("PICKHELPER_API_BASE_URL", "http://localhost:8080"), "/"),
		ServerPort:         getEnv("SERVER_PORT", "8090"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		AllowedOrigins:     splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		ExternalAPITimeout: timeout,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Log(logger zerolog.Logger) {
	logger.Info().
		Str("api_base_url", c.APIBaseURL).
		Str("server_port", c.ServerPort).
		Str("log_level", c.LogLevel).
		Strs("allowed_origins", c.AllowedOrigins).
		Dur("external_api_timeout", c.ExternalAPITimeout).
		Msg("configuration loaded")
}

func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("PICKHELPER_API_BASE_URL must be an http(s) URL, got %q", c.APIBaseURL))
	}
	if c.ServerPort == "" {
		errs = append(errs, errors.New("SERVER_PORT is empty"))
	}
	if c.ExternalAPITimeout <= 0 {
		errs = append(errs, errors.New("EXTERNAL_API_TIMEOUT must be positive"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
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

var Module = fx.Provide(Load)
