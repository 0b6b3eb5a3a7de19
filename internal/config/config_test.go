package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("KEEPUP_DB_PATH", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "keepup.db" {
		t.Errorf("db path = %q", cfg.DBPath)
	}
	if cfg.Timezone != "America/Los_Angeles" {
		t.Errorf("timezone = %q", cfg.Timezone)
	}
	if cfg.FutureWindowDays != 30 {
		t.Errorf("future window = %d, want 30", cfg.FutureWindowDays)
	}
	if cfg.StaleLimit != 10 {
		t.Errorf("stale limit = %d, want 10", cfg.StaleLimit)
	}
	if cfg.Port != "8080" {
		t.Errorf("port = %q, want 8080", cfg.Port)
	}
	if cfg.Tenant != "common" {
		t.Errorf("tenant = %q, want common", cfg.Tenant)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KEEPUP_DB_PATH", "/tmp/keepup.db")
	t.Setenv("KEEPUP_FUTURE_WINDOW_DAYS", "90")
	t.Setenv("KEEPUP_IGNORE_ORGANIZER", "spam@example.com")
	t.Setenv("KEEPUP_IGNORE_PHRASE", "lunch and learn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.FutureWindowDays != 90 {
		t.Errorf("future window = %d, want 90", cfg.FutureWindowDays)
	}
	if cfg.IgnoreOrganizer != "spam@example.com" || cfg.IgnorePhrase != "lunch and learn" {
		t.Errorf("ignore filter = %q / %q", cfg.IgnoreOrganizer, cfg.IgnorePhrase)
	}
}

func TestLoadRejectsBadInt(t *testing.T) {
	t.Setenv("KEEPUP_DB_PATH", "/tmp/keepup.db")
	t.Setenv("KEEPUP_STALE_LIMIT", "lots")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric KEEPUP_STALE_LIMIT")
	}
}
