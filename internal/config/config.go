package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/kirillkom/site-mapper/internal/core/domain"
)

// Config holds process settings. Every field can come from the optional
// settings file or from the upper-cased environment variable of its key.
type Config struct {
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`
	APIPort  string `koanf:"api_port" validate:"required"`

	SitesDir       string `koanf:"sites_dir" validate:"required"`
	SitesConfig    string `koanf:"sites_config" validate:"required"`
	InventoryPath  string `koanf:"inventory_path" validate:"required"`
	RunConcurrency int    `koanf:"run_concurrency" validate:"min=1,max=64"`

	PostgresDSN string `koanf:"postgres_dsn"`

	NATSURL              string `koanf:"nats_url"`
	NATSInventorySubject string `koanf:"nats_inventory_subject" validate:"required"`
	NATSSiteSubject      string `koanf:"nats_site_subject" validate:"required"`

	GCSBucket string `koanf:"gcs_bucket"`
	GCSPrefix string `koanf:"gcs_prefix"`

	GoogleCredentials string  `koanf:"google_credentials"`
	DriveFolderID     string  `koanf:"drive_folder_id"`
	DriveRateLimitRPS float64 `koanf:"drive_rate_limit_rps" validate:"gt=0"`

	APIRateLimitRPS   float64 `koanf:"api_rate_limit_rps" validate:"gte=0"`
	APIRateLimitBurst int     `koanf:"api_rate_limit_burst" validate:"gte=0"`

	WorkerMetricsPort string `koanf:"worker_metrics_port"`
}

// Defaults returns the settings used when neither file nor environment set a key.
func Defaults() Config {
	return Config{
		LogLevel: "info",
		APIPort:  "8080",

		SitesDir:       "sites",
		SitesConfig:    "sites.config.json",
		InventoryPath:  "file-mapping.json",
		RunConcurrency: 4,

		NATSInventorySubject: "inventory.updated",
		NATSSiteSubject:      "sites.data.updated",

		GCSPrefix: "sites",

		DriveRateLimitRPS: 8,

		APIRateLimitRPS:   20,
		APIRateLimitBurst: 40,

		WorkerMetricsPort: "9090",
	}
}

// Load resolves settings with precedence environment > settings file >
// defaults. envFile is loaded into the environment first when it exists; it
// never overrides variables that are already set.
func Load(settingsPath, envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, domain.WrapError(domain.ErrConfig, "load env file", err)
		}
	}

	k := koanf.New(".")
	if settingsPath != "" {
		content, err := os.ReadFile(settingsPath)
		if err != nil {
			return Config{}, domain.WrapError(domain.ErrConfig, "read settings file", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return Config{}, domain.WrapError(domain.ErrConfig, "parse settings file", err)
		}
	}

	known := knownKeys()
	if err := k.Load(env.Provider("", ".", func(s string) string {
		key := strings.ToLower(s)
		if !known[key] || os.Getenv(s) == "" {
			return ""
		}
		return key
	}), nil); err != nil {
		return Config{}, domain.WrapError(domain.ErrConfig, "load environment", err)
	}

	cfg := Defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, domain.WrapError(domain.ErrConfig, "decode settings", err)
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if err := newValidator().Struct(cfg); err != nil {
		return Config{}, domain.WrapError(domain.ErrConfig, "validate settings", validationError(err))
	}
	return cfg, nil
}

func knownKeys() map[string]bool {
	return map[string]bool{
		"log_level":              true,
		"api_port":               true,
		"sites_dir":              true,
		"sites_config":           true,
		"inventory_path":         true,
		"run_concurrency":        true,
		"postgres_dsn":           true,
		"nats_url":               true,
		"nats_inventory_subject": true,
		"nats_site_subject":      true,
		"gcs_bucket":             true,
		"gcs_prefix":             true,
		"google_credentials":     true,
		"drive_folder_id":        true,
		"drive_rate_limit_rps":   true,
		"api_rate_limit_rps":     true,
		"api_rate_limit_burst":   true,
		"worker_metrics_port":    true,
	}
}

// Address formats a port setting as a listen address.
func Address(port string) string {
	if strings.Contains(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}
