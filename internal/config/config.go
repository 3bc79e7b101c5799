// Package config loads the immutable service configuration. Values come from
// a TOML file layered over defaults, with credentials and tokens overridable
// from the environment so they stay out of checked-in files.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is constructed once at startup and injected into each component.
// It is never mutated after Load returns.
type Config struct {
	HTTP      HTTPConfig      `toml:"http"`
	Intake    IntakeConfig    `toml:"intake"`
	Ledger    LedgerConfig    `toml:"ledger"`
	Directory DirectoryConfig `toml:"directory"`
	Sweep     SweepConfig     `toml:"sweep"`
	Telegram  TelegramConfig  `toml:"telegram"`
	BigQuery  BigQueryConfig  `toml:"bigquery"`
	GCS       GCSConfig       `toml:"gcs"`
	Google    GoogleConfig    `toml:"google"`
	Model     ModelConfig     `toml:"model"`
}

type HTTPConfig struct {
	Port int `toml:"port"`
}

type IntakeConfig struct {
	SpreadsheetID string `toml:"spreadsheet_id"`
	Sheet         string `toml:"sheet"`
	RetentionDays int    `toml:"retention_days"`
}

type LedgerConfig struct {
	// The organization-wide ledger.
	DefaultSpreadsheetID string `toml:"default_spreadsheet_id"`
	DefaultSheet         string `toml:"default_sheet"`
	// Sheet name convention inside managed (per-shipment) ledgers.
	ManagedSheet string `toml:"managed_sheet"`
}

type DirectoryConfig struct {
	SpreadsheetID string `toml:"spreadsheet_id"`
	Sheet         string `toml:"sheet"`
	MaxHops       int    `toml:"max_hops"`
}

type SweepConfig struct {
	WindowDays      int `toml:"window_days"`
	IntervalMinutes int `toml:"interval_minutes"`
}

type TelegramConfig struct {
	Token  string `toml:"token"`
	ChatID string `toml:"chat_id"`
}

type BigQueryConfig struct {
	Project    string `toml:"project"`
	Dataset    string `toml:"dataset"`
	AuditTable string `toml:"audit_table"`
}

type GCSConfig struct {
	Bucket string `toml:"bucket"`
}

type GoogleConfig struct {
	CredentialsFile string `toml:"credentials_file"`
}

type ModelConfig struct {
	// Gemini model used for fallback field extraction. Empty disables the
	// fallback entirely.
	Name string `toml:"name"`
}

// DefaultConfig returns the configuration used when no file overrides it.
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{Port: 8080},
		Intake: IntakeConfig{
			Sheet:         "Intake Log",
			RetentionDays: 30,
		},
		Ledger: LedgerConfig{
			DefaultSheet: "Ledger",
			ManagedSheet: "Transactions",
		},
		Directory: DirectoryConfig{
			Sheet:   "Shipment Ledger Listing",
			MaxHops: 10,
		},
		Sweep: SweepConfig{
			WindowDays:      7,
			IntervalMinutes: 15,
		},
		BigQuery: BigQueryConfig{
			Dataset:    "bookkeeping",
			AuditTable: "posted_transactions",
		},
	}
}

// Load reads the TOML file at path (if non-empty) over the defaults and then
// applies environment overrides.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.Directory.MaxHops <= 0 {
		cfg.Directory.MaxHops = 10
	}
	return cfg, nil
}

// applyEnv pulls secrets and deploy-specific values from the environment.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" && cfg.Google.CredentialsFile == "" {
		cfg.Google.CredentialsFile = v
	}
	if v := os.Getenv("BOOKKEEPER_GCS_BUCKET"); v != "" {
		cfg.GCS.Bucket = v
	}
	if v := os.Getenv("BOOKKEEPER_BQ_PROJECT"); v != "" {
		cfg.BigQuery.Project = v
	}
}
