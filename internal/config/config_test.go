package config_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/apply-service/internal/config"
)

func TestLoadService(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	_, err := config.LoadService()
	require.ErrorContains(t, err, "DATABASE_URL is required")

	t.Setenv("DATABASE_URL", "postgres://localhost/apply")
	t.Setenv("DB_MAX_CONNS", "")
	t.Setenv("RESET_TIMEZONE", "Asia/Kolkata")
	cfg, err := config.LoadService()
	require.NoError(t, err)
	assert.Equal(t, "8083", cfg.Port)
	assert.Equal(t, "apply:requests", cfg.RequestQueue)
	assert.Equal(t, int32(5), cfg.DBMaxConns)
	assert.Equal(t, "Asia/Kolkata", cfg.Location.String())

	t.Setenv("DB_MAX_CONNS", "zero")
	_, err = config.LoadService()
	require.ErrorContains(t, err, "DB_MAX_CONNS")

	t.Setenv("DB_MAX_CONNS", "")
	t.Setenv("RESET_TIMEZONE", "Mars/Olympus")
	_, err = config.LoadService()
	require.ErrorContains(t, err, "RESET_TIMEZONE")
}

func TestLoadAgent(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	_, err := config.LoadAgent()
	require.ErrorContains(t, err, "REDIS_URL is required")

	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("APPLY_REPLY_TIMEOUT", "3s")
	t.Setenv("APPLY_THROTTLE_PER_HOUR", "")
	t.Setenv("APPLY_LOG_LEVEL", "debug")
	cfg, err := config.LoadAgent()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.ReplyTimeout)
	assert.Equal(t, 30, cfg.ThrottlePerHour)
	assert.Equal(t, "127.0.0.1:7070", cfg.ControlAddr)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)

	t.Setenv("APPLY_REPLY_TIMEOUT", "-1s")
	_, err = config.LoadAgent()
	require.ErrorContains(t, err, "APPLY_REPLY_TIMEOUT")
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("APPLY_TEST_FROM_DOTENV=yes\nAPPLY_TEST_PRESET=file\n"), 0o600))

	t.Setenv("APPLY_TEST_PRESET", "env")
	t.Cleanup(func() { os.Unsetenv("APPLY_TEST_FROM_DOTENV") })

	require.NoError(t, config.LoadDotenv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "yes", os.Getenv("APPLY_TEST_FROM_DOTENV"))
	assert.Equal(t, "env", os.Getenv("APPLY_TEST_PRESET"), "variables already set win")
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := config.SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("queue complete", "processed", 5)

	assert.Contains(t, stderr.String(), "queue complete")
	assert.NotContains(t, stderr.String(), "hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &rec))
	assert.Equal(t, "queue complete", rec["msg"])
	assert.EqualValues(t, 5, rec["processed"])
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug, "WARNING": slog.LevelWarn, "error": slog.LevelError, "bogus": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := config.ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
