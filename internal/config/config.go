package config

import (
	"flag"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Mode           string
	DatabasePath   string
	NatsURL        string
	MetricsAddress string
	LogLevel       string
	UserID         string

	// Sync layer tunables. Defaults match the observed client behavior;
	// they are parameters, not contracts.
	PageSize           int
	ReconcileTolerance time.Duration
	TypingThrottle     time.Duration
	TypingIdleClear    time.Duration
}

func Load() *Config {
	// A missing .env is fine; real environment variables take over in that case.
	_ = godotenv.Load()

	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".chat-client")

	cfg := &Config{}

	flag.StringVar(&cfg.Mode, "mode", "interactive", "Run mode: interactive or headless")
	flag.StringVar(&cfg.DatabasePath, "db", getEnv("CHAT_DATABASE_PATH", filepath.Join(dataDir, "chat.db")), "Database file path")
	flag.StringVar(&cfg.NatsURL, "nats", getEnv("CHAT_NATS_URL", ""), "NATS server URL for message fanout (empty disables)")
	flag.StringVar(&cfg.MetricsAddress, "metrics", getEnv("CHAT_METRICS_ADDRESS", ""), "Prometheus metrics listen address (empty disables)")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("CHAT_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	flag.StringVar(&cfg.UserID, "user", getEnv("CHAT_USER_ID", ""), "Local user id")
	flag.IntVar(&cfg.PageSize, "page-size", getEnvInt("CHAT_PAGE_SIZE", 20), "Messages per window page")

	flag.Parse()

	cfg.ReconcileTolerance = getEnvDuration("CHAT_RECONCILE_TOLERANCE", 5*time.Second)
	cfg.TypingThrottle = getEnvDuration("CHAT_TYPING_THROTTLE", time.Second)
	cfg.TypingIdleClear = getEnvDuration("CHAT_TYPING_IDLE_CLEAR", 3*time.Second)

	os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755)

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
