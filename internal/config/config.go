package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// TableEntry maps one logical table to its remote tab.
type TableEntry struct {
	Name string
	Tab  string
}

// Config carries every runtime setting for the sync engine.
// All values come from the environment; a .env file is honored when present.
type Config struct {
	AppEnv string
	Port   int

	// Local storage
	DataDir    string
	SQLitePath string

	// Remote spreadsheet
	SpreadsheetID  string
	SheetsBaseURL  string
	TokenEndpoint  string
	ServiceAccount string
	PrivateKeyPEM  string

	// Webhook
	WebhookSecret string

	// Notifications (optional)
	RedisAddr string

	SyncInterval time.Duration
	Tables       []TableEntry
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	// Best effort: local development keeps settings in .env
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnvInt("PORT", 8080),
		DataDir:        getEnv("DATA_DIR", "./data"),
		SQLitePath:     getEnv("SQLITE_PATH", "./data/syncengine.db"),
		SpreadsheetID:  os.Getenv("SPREADSHEET_ID"),
		SheetsBaseURL:  getEnv("SHEETS_BASE_URL", "https://sheets.googleapis.com/v4"),
		TokenEndpoint:  getEnv("TOKEN_ENDPOINT", "https://oauth2.googleapis.com/token"),
		ServiceAccount: os.Getenv("SERVICE_ACCOUNT_EMAIL"),
		PrivateKeyPEM:  os.Getenv("SERVICE_ACCOUNT_KEY"),
		WebhookSecret:  os.Getenv("WEBHOOK_SECRET"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		SyncInterval:   getEnvDuration("SYNC_INTERVAL", time.Hour),
	}

	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("SPREADSHEET_ID is required")
	}

	tables, err := parseTables(getEnv("SYNC_TABLES", "bookings:Bookings"))
	if err != nil {
		return nil, err
	}
	cfg.Tables = tables

	return cfg, nil
}

// parseTables parses the SYNC_TABLES value, a comma list of name:tab pairs,
// e.g. "bookings:Bookings,tasks:Tasks".
func parseTables(raw string) ([]TableEntry, error) {
	var entries []TableEntry
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, tab, found := strings.Cut(part, ":")
		if !found || name == "" || tab == "" {
			return nil, fmt.Errorf("invalid SYNC_TABLES entry %q (want name:tab)", part)
		}
		entries = append(entries, TableEntry{Name: name, Tab: tab})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("SYNC_TABLES resolved to no tables")
	}
	return entries, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
