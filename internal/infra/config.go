package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	KlingBaseURL   string
	KlingAccessKey string
	KlingSecretKey string

	TrainerBaseURL string

	SubmitSpacing time.Duration
	PollInterval  time.Duration
	PollDeadline  time.Duration

	DefaultLocale string
	GeoIPDBPath   string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		KlingBaseURL:     getEnv("KLING_BASE_URL", "https://api.klingai.com"),
		KlingAccessKey:   os.Getenv("KLING_ACCESS_KEY"),
		KlingSecretKey:   os.Getenv("KLING_SECRET_KEY"),
		TrainerBaseURL:   getEnv("TRAINER_BASE_URL", "http://localhost:8188"),
		SubmitSpacing:    time.Millisecond * time.Duration(getEnvInt("SUBMIT_SPACING_MS", 500)),
		PollInterval:     time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 4)),
		PollDeadline:     time.Second * time.Duration(getEnvInt("POLL_DEADLINE_SECONDS", 180)),
		DefaultLocale:    getEnv("DEFAULT_LOCALE", "en"),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.SubmitSpacing <= 0 {
		return nil, fmt.Errorf("SUBMIT_SPACING_MS must be positive")
	}
	if cfg.PollInterval <= 0 || cfg.PollDeadline <= 0 {
		return nil, fmt.Errorf("poll interval and deadline must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
