package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("PUMP_USERNAME", "alice")
	t.Setenv("PUMP_PASSWORD", "secret")
	t.Setenv("PUMP_SERIAL", "PMP-1234")
	t.Setenv("PUMP_SERVER", "https://cloud.example.com/")
	t.Setenv("NIGHTSCOUT_URL", "https://ns.example.com/")
}

func TestLoad_DefaultsAndTrimming(t *testing.T) {
	setRequired(t)

	cfg := Load()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.PumpServer != "https://cloud.example.com" {
		t.Fatalf("trailing slash not trimmed: %q", cfg.PumpServer)
	}
	if cfg.NightscoutURL != "https://ns.example.com" {
		t.Fatalf("trailing slash not trimmed: %q", cfg.NightscoutURL)
	}
	if cfg.SyncInterval != 5*time.Minute {
		t.Fatalf("default sync_interval=%v, want 5m", cfg.SyncInterval)
	}
	if cfg.DedupWindow != 72*time.Hour || cfg.DedupMaxSize != 50000 {
		t.Fatalf("dedup defaults: window=%v size=%d", cfg.DedupWindow, cfg.DedupMaxSize)
	}
	if cfg.AdminAddr != ":8720" {
		t.Fatalf("default admin_addr=%q", cfg.AdminAddr)
	}
}

func TestValidate_ListsAllMissing(t *testing.T) {
	err := (&Config{SyncInterval: time.Minute, BackoffBase: time.Second, BackoffMax: time.Minute}).Validate()
	if err == nil {
		t.Fatal("want error for empty config")
	}
	for _, name := range []string{"PUMP_USERNAME", "PUMP_PASSWORD", "PUMP_SERIAL", "PUMP_SERVER", "NIGHTSCOUT_URL"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error should name %s: %v", name, err)
		}
	}
}

func TestValidate_Bounds(t *testing.T) {
	setRequired(t)

	cfg := Load()
	cfg.BackoffMax = cfg.BackoffBase / 2
	if err := cfg.Validate(); err == nil {
		t.Fatal("want error when backoff_max < backoff_base")
	}

	cfg = Load()
	cfg.DedupWindow = cfg.FetchOverlap / 2
	if err := cfg.Validate(); err == nil {
		t.Fatal("want error when dedup_window < fetch_overlap")
	}
}
