// Package config loads connector configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config carries everything the connector needs at startup. Validated
// once before the orchestrator starts; missing required fields fail
// connector startup, not individual cycles.
type Config struct {
	// Vendor cloud.
	PumpUsername string
	PumpPassword string
	PumpSerial   string
	PumpServer   string // vendor region server base URL

	// Scheduling.
	SyncInterval time.Duration
	FetchOverlap time.Duration
	BackoffBase  time.Duration
	BackoffMax   time.Duration
	SessionTTL   time.Duration // fallback when the token carries no expiry

	// Dedup.
	DedupWindow  time.Duration
	DedupMaxSize int
	DatabaseURI  string // optional; enables the Postgres-backed dedup store

	// Downstream.
	NightscoutURL    string
	NightscoutSecret string

	// Admin HTTP surface.
	AdminAddr string
}

// Load reads configuration from the environment (and an optional .env
// file in the working directory).
func Load() *Config {
	// Missing .env is fine; plain environment variables still apply.
	_ = godotenv.Load()

	viper.AutomaticEnv()
	viper.SetDefault("sync_interval", "5m")
	viper.SetDefault("fetch_overlap", "30m")
	viper.SetDefault("backoff_base", "30s")
	viper.SetDefault("backoff_max", "15m")
	viper.SetDefault("session_ttl", "15m")
	viper.SetDefault("dedup_window", "72h")
	viper.SetDefault("dedup_max_size", 50000)
	viper.SetDefault("admin_addr", ":8720")

	return &Config{
		PumpUsername:     viper.GetString("pump_username"),
		PumpPassword:     viper.GetString("pump_password"),
		PumpSerial:       viper.GetString("pump_serial"),
		PumpServer:       strings.TrimRight(viper.GetString("pump_server"), "/"),
		SyncInterval:     viper.GetDuration("sync_interval"),
		FetchOverlap:     viper.GetDuration("fetch_overlap"),
		BackoffBase:      viper.GetDuration("backoff_base"),
		BackoffMax:       viper.GetDuration("backoff_max"),
		SessionTTL:       viper.GetDuration("session_ttl"),
		DedupWindow:      viper.GetDuration("dedup_window"),
		DedupMaxSize:     viper.GetInt("dedup_max_size"),
		DatabaseURI:      viper.GetString("database_uri"),
		NightscoutURL:    strings.TrimRight(viper.GetString("nightscout_url"), "/"),
		NightscoutSecret: viper.GetString("nightscout_secret"),
		AdminAddr:        viper.GetString("admin_addr"),
	}
}

// Validate checks required fields and sane bounds.
func (c *Config) Validate() error {
	var missing []string
	for _, f := range []struct{ name, val string }{
		{"PUMP_USERNAME", c.PumpUsername},
		{"PUMP_PASSWORD", c.PumpPassword},
		{"PUMP_SERIAL", c.PumpSerial},
		{"PUMP_SERVER", c.PumpServer},
		{"NIGHTSCOUT_URL", c.NightscoutURL},
	} {
		if f.val == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.SyncInterval <= 0 {
		return errors.New("sync_interval must be positive")
	}
	if c.BackoffBase <= 0 || c.BackoffMax < c.BackoffBase {
		return errors.New("backoff bounds invalid (need 0 < base <= max)")
	}
	if c.DedupWindow < c.FetchOverlap {
		return errors.New("dedup_window must cover at least the fetch overlap")
	}
	return nil
}
