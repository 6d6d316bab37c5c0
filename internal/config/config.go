package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken          string
	DatabaseURL            string
	DailyChallengeTime     string
	Location               *time.Location
	SessionTTL             time.Duration
	SessionCleanupInterval time.Duration
	AdminAddr              string
	AdminToken             string
	AdminTrustedProxies    []string
	ThemeMode              string
	LogLevel               string
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is applied first when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		TelegramToken:          strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		DatabaseURL:            strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DailyChallengeTime:     strings.TrimSpace(os.Getenv("DAILY_CHALLENGE_TIME")),
		SessionTTL:             parseDuration(strings.TrimSpace(os.Getenv("SESSION_TTL"))),
		SessionCleanupInterval: parseDuration(strings.TrimSpace(os.Getenv("SESSION_CLEANUP_INTERVAL"))),
		AdminToken:             strings.TrimSpace(os.Getenv("ADMIN_TOKEN")),
		ThemeMode:              strings.ToLower(strings.TrimSpace(os.Getenv("THEME_MODE"))),
		LogLevel:               strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "true_north.db"
	}
	if cfg.DailyChallengeTime == "" {
		cfg.DailyChallengeTime = "09:00"
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 30 * 24 * time.Hour
	}
	if cfg.SessionCleanupInterval == 0 {
		cfg.SessionCleanupInterval = time.Hour
	}
	if cfg.ThemeMode == "" {
		cfg.ThemeMode = "light"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	// An explicitly empty ADMIN_ADDR disables the admin server.
	if addr, ok := os.LookupEnv("ADMIN_ADDR"); ok {
		cfg.AdminAddr = strings.TrimSpace(addr)
	} else {
		cfg.AdminAddr = ":8080"
	}

	for _, ip := range strings.Split(os.Getenv("ADMIN_TRUSTED_PROXIES"), ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			cfg.AdminTrustedProxies = append(cfg.AdminTrustedProxies, ip)
		}
	}

	cfg.Location = time.Local
	if tz := strings.TrimSpace(os.Getenv("TIMEZONE")); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return cfg, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
		}
		cfg.Location = loc
	}

	if cfg.ThemeMode != "light" && cfg.ThemeMode != "dark" {
		return cfg, fmt.Errorf("THEME_MODE must be light or dark, got %q", cfg.ThemeMode)
	}

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	return cfg, nil
}

func parseDuration(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}
