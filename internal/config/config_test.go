package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "DEFAULT_CURRENCY", "DEFAULT_GROUPS", "CACHE_TTL", "LOG_MAX_SIZE_MB"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Port)
	}
	if cfg.DefaultCurrency != "PHP" {
		t.Errorf("expected default currency PHP, got %s", cfg.DefaultCurrency)
	}
	if len(cfg.DefaultGroups) != 2 || cfg.DefaultGroups[0] != "AccountGroup" {
		t.Errorf("unexpected default groups %v", cfg.DefaultGroups)
	}
	if cfg.CacheTTL != 10*time.Minute {
		t.Errorf("expected 10m cache TTL, got %s", cfg.CacheTTL)
	}
	if cfg.LogMaxSizeMB != 100 {
		t.Errorf("expected 100MB log size, got %d", cfg.LogMaxSizeMB)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DEFAULT_CURRENCY", "usd")
	t.Setenv("DEFAULT_GROUPS", " ContentGroup , ,StaffGroup")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("LOG_MAX_SIZE_MB", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DefaultCurrency != "USD" {
		t.Errorf("expected currency to be upper-cased, got %s", cfg.DefaultCurrency)
	}
	if len(cfg.DefaultGroups) != 2 || cfg.DefaultGroups[1] != "StaffGroup" {
		t.Errorf("unexpected groups %v", cfg.DefaultGroups)
	}
	if cfg.CacheTTL != 90*time.Second {
		t.Errorf("expected 90s TTL, got %s", cfg.CacheTTL)
	}
	if cfg.LogMaxSizeMB != 100 {
		t.Errorf("invalid int should fall back to default, got %d", cfg.LogMaxSizeMB)
	}
}
