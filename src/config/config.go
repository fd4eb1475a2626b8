package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port        string
	DBDriver    string
	DatabaseURL string
	SQLitePath  string
	JWTSecret   string
	CORSOrigins []string
	DemoMode    bool

	EvalQueueSize int
	EvalWorkers   int
	CacheMaxCost  int64

	TelegramBotToken string

	PlaidClientID string
	PlaidSecret   string
	PlaidEnv      string
}

// PlaidEnabled reports whether bank sync credentials are configured.
func (c Config) PlaidEnabled() bool {
	return c.PlaidClientID != "" && c.PlaidSecret != ""
}

func Load() (Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	cfg := Config{
		Port:             getEnv("PORT", "8080"),
		DBDriver:         strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		SQLitePath:       getEnv("SQLITE_PATH", "data/spendwise.db"),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		PlaidClientID:    getEnv("PLAID_CLIENT_ID", ""),
		PlaidSecret:      getEnv("PLAID_SECRET", ""),
		PlaidEnv:         strings.ToLower(getEnv("PLAID_ENV", "sandbox")),
	}

	var err error
	if cfg.DemoMode, err = getBool("DEMO_MODE", false); err != nil {
		return Config{}, err
	}
	if cfg.EvalQueueSize, err = getInt("EVAL_QUEUE_SIZE", 1000); err != nil {
		return Config{}, err
	}
	if cfg.EvalWorkers, err = getInt("EVAL_WORKERS", 4); err != nil {
		return Config{}, err
	}
	maxCost, err := getInt("CACHE_MAX_COST", 10000)
	if err != nil {
		return Config{}, err
	}
	cfg.CacheMaxCost = int64(maxCost)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.DBDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.EvalQueueSize <= 0 || c.EvalWorkers <= 0 {
		return errors.New("EVAL_QUEUE_SIZE and EVAL_WORKERS must be positive")
	}
	switch c.PlaidEnv {
	case "sandbox", "production":
	default:
		return fmt.Errorf("unknown PLAID_ENV %q", c.PlaidEnv)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
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
