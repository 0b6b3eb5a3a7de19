package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config carries everything keepup reads from the environment. Values
// come from KEEPUP_* variables, with a .env file loaded beforehand when
// present.
type Config struct {
	DBPath     string
	Timezone   string
	OwnerEmail string
	LogLevel   string

	// Provider auth.
	ClientID   string
	Tenant     string
	TokenCache string

	// Sync tuning.
	FutureWindowDays int
	ProviderZone     string

	// Ignore filter. Both must be set for the filter to apply.
	IgnoreOrganizer string
	IgnorePhrase    string

	// Presentation.
	Port       string
	SummaryTo  string
	StaleLimit int
}

// Load reads the environment into a Config, applying defaults for
// everything unset.
func Load() (Config, error) {
	cfg := Config{
		DBPath:          getDefault("KEEPUP_DB_PATH", "keepup.db"),
		Timezone:        getDefault("KEEPUP_TIMEZONE", "America/Los_Angeles"),
		OwnerEmail:      os.Getenv("KEEPUP_OWNER_EMAIL"),
		LogLevel:        getDefault("KEEPUP_LOG_LEVEL", "info"),
		ClientID:        os.Getenv("KEEPUP_CLIENT_ID"),
		Tenant:          getDefault("KEEPUP_TENANT", "common"),
		TokenCache:      getDefault("KEEPUP_TOKEN_CACHE", "token_cache.json"),
		ProviderZone:    getDefault("KEEPUP_PROVIDER_ZONE", "Pacific Standard Time"),
		IgnoreOrganizer: os.Getenv("KEEPUP_IGNORE_ORGANIZER"),
		IgnorePhrase:    os.Getenv("KEEPUP_IGNORE_PHRASE"),
		Port:            getDefault("KEEPUP_PORT", "8080"),
		SummaryTo:       os.Getenv("KEEPUP_SUMMARY_TO"),
	}

	var err error
	if cfg.FutureWindowDays, err = getIntDefault("KEEPUP_FUTURE_WINDOW_DAYS", 30); err != nil {
		return Config{}, err
	}
	if cfg.StaleLimit, err = getIntDefault("KEEPUP_STALE_LIMIT", 10); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntDefault(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
