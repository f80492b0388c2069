// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing or malformed, Load returns an
// error and the process exits.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Service holds the runtime configuration of the background service.
type Service struct {
	Port         string
	DatabaseURL  string
	RedisURL     string
	RequestQueue string // Redis list the agent pushes requests onto
	KeyPrefix    string // namespace of the Redis key-value store
	DBMaxConns   int32
	Location     *time.Location // reset schedule time zone

	LogFile  string
	LogLevel slog.Level
}

// Agent holds the runtime configuration of the apply agent.
type Agent struct {
	RedisURL        string
	RequestQueue    string
	ReplyTimeout    time.Duration
	ControlAddr     string // gRPC controller listen address
	ProfilePath     string
	MappingsPath    string // optional answer-mapping overrides
	ThrottlePerHour int    // local sliding-window cap

	LogFile  string
	LogLevel slog.Level
}

// LoadDotenv loads .env files into the environment. Missing files are
// ignored; variables already set win.
func LoadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// LoadService reads environment variables and returns a validated Service.
func LoadService() (*Service, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	maxConns := 5
	if s := os.Getenv("DB_MAX_CONNS"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("DB_MAX_CONNS must be a positive integer, got %q", s)
		}
		maxConns = v
	}

	loc := time.Local
	if tz := os.Getenv("RESET_TIMEZONE"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("RESET_TIMEZONE: %w", err)
		}
		loc = l
	}

	cfg := &Service{
		Port:         getEnv("APPLY_SERVICE_PORT", "8083"),
		DatabaseURL:  dbURL,
		RedisURL:     redisURL,
		RequestQueue: getEnv("APPLY_REQUEST_QUEUE", "apply:requests"),
		KeyPrefix:    getEnv("APPLY_KEY_PREFIX", "apply:kv:"),
		DBMaxConns:   int32(maxConns),
		Location:     loc,
	}
	cfg.LogFile, cfg.LogLevel = LoggingFromEnv()
	return cfg, nil
}

// LoadAgent reads environment variables and returns a validated Agent.
func LoadAgent() (*Agent, error) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	timeout := 10 * time.Second
	if s := os.Getenv("APPLY_REPLY_TIMEOUT"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("APPLY_REPLY_TIMEOUT must be a positive duration, got %q", s)
		}
		timeout = d
	}

	perHour := 30
	if s := os.Getenv("APPLY_THROTTLE_PER_HOUR"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("APPLY_THROTTLE_PER_HOUR must be a positive integer, got %q", s)
		}
		perHour = v
	}

	cfg := &Agent{
		RedisURL:        redisURL,
		RequestQueue:    getEnv("APPLY_REQUEST_QUEUE", "apply:requests"),
		ReplyTimeout:    timeout,
		ControlAddr:     getEnv("APPLY_CONTROL_ADDR", "127.0.0.1:7070"),
		ProfilePath:     getEnv("APPLY_PROFILE", "profile.yaml"),
		MappingsPath:    os.Getenv("APPLY_MAPPINGS"),
		ThrottlePerHour: perHour,
	}
	cfg.LogFile, cfg.LogLevel = LoggingFromEnv()
	return cfg, nil
}

// LoggingFromEnv returns the log file (empty for stderr only) and level.
func LoggingFromEnv() (string, slog.Level) {
	return os.Getenv("APPLY_LOG_FILE"), ParseLogLevel(getEnv("APPLY_LOG_LEVEL", "INFO"))
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// ParseLogLevel maps a level name to a slog.Level, INFO when unknown.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
