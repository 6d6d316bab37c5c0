package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TELEGRAM_TOKEN", "DATABASE_URL", "DAILY_CHALLENGE_TIME", "TIMEZONE",
		"SESSION_TTL", "SESSION_CLEANUP_INTERVAL", "ADMIN_TOKEN", "ADMIN_TRUSTED_PROXIES", "THEME_MODE", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("ADMIN_ADDR", ":8080")
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "token")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "true_north.db", cfg.DatabaseURL)
	require.Equal(t, "09:00", cfg.DailyChallengeTime)
	require.Equal(t, 30*24*time.Hour, cfg.SessionTTL)
	require.Equal(t, time.Hour, cfg.SessionCleanupInterval)
	require.Equal(t, "light", cfg.ThemeMode)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, ":8080", cfg.AdminAddr)
	require.Equal(t, time.Local, cfg.Location)
	require.Empty(t, cfg.AdminTrustedProxies)
}

func TestLoadRequiresToken(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.EqualError(t, err, "TELEGRAM_TOKEN is required")
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("SESSION_CLEANUP_INTERVAL", "bogus")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("THEME_MODE", "Dark")
	t.Setenv("ADMIN_ADDR", "")
	t.Setenv("ADMIN_TRUSTED_PROXIES", " 10.0.0.1, ,127.0.0.1")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 2*time.Hour, cfg.SessionTTL)
	require.Equal(t, time.Hour, cfg.SessionCleanupInterval)
	require.Equal(t, "UTC", cfg.Location.String())
	require.Equal(t, "dark", cfg.ThemeMode)
	require.Empty(t, cfg.AdminAddr)
	require.Equal(t, []string{"10.0.0.1", "127.0.0.1"}, cfg.AdminTrustedProxies)
}

func TestLoadRejectsUnknownTheme(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("THEME_MODE", "sepia")

	_, err := Load()
	require.Error(t, err)
}
