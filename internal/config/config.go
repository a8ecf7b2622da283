package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	DocumentURL           string        `mapstructure:"document_url"`
	Production            bool          `mapstructure:"production"`
	CredentialsMode       string        `mapstructure:"credentials_mode"`
	CSRFToken             string        `mapstructure:"csrf_token"`
	CSRFBootstrapPath     string        `mapstructure:"csrf_bootstrap_path"`
	RequestTimeoutSeconds int64         `mapstructure:"request_timeout_seconds"`
	RequestTimeout        time.Duration `mapstructure:"-"`
	NetworkRetries        int           `mapstructure:"network_retries"`

	EndpointsFile          string        `mapstructure:"endpoints_file"`
	PublishersFile         string        `mapstructure:"publishers_file"`
	HarvestIntervalSeconds int64         `mapstructure:"harvest_interval"`
	HarvestInterval        time.Duration `mapstructure:"-"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

var credentialsModes = map[string]struct{}{
	"omit":        {},
	"same-origin": {},
	"include":     {},
}

// Load reads configuration from configs/.env and environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	// production follows app_env unless PRODUCTION is set explicitly.
	v.SetDefault("production", strings.EqualFold(v.GetString("app_env"), "production"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "fetchapi")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("document_url", "http://localhost")
	v.SetDefault("credentials_mode", "same-origin")
	v.SetDefault("csrf_token", "")
	v.SetDefault("csrf_bootstrap_path", "")
	v.SetDefault("request_timeout_seconds", 30)
	v.SetDefault("network_retries", 0)
	v.SetDefault("endpoints_file", "./configs/endpoints.yaml")
	v.SetDefault("publishers_file", "./configs/publishers.yaml")
	v.SetDefault("harvest_interval", 900) // seconds
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/cache.db")
	v.SetDefault("storage_ttl_seconds", int64((5*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))
}

func (cfg *Config) normalize() error {
	cfg.DocumentURL = strings.TrimSpace(cfg.DocumentURL)
	if u, err := url.Parse(cfg.DocumentURL); err != nil || !u.IsAbs() {
		return fmt.Errorf("invalid document_url %q (must be an absolute url)", cfg.DocumentURL)
	}

	cfg.CredentialsMode = strings.ToLower(strings.TrimSpace(cfg.CredentialsMode))
	if _, ok := credentialsModes[cfg.CredentialsMode]; !ok {
		return fmt.Errorf("invalid credentials_mode %q (expected omit, same-origin or include)", cfg.CredentialsMode)
	}
	cfg.CSRFToken = strings.TrimSpace(cfg.CSRFToken)
	cfg.CSRFBootstrapPath = strings.TrimSpace(cfg.CSRFBootstrapPath)

	if cfg.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid request_timeout_seconds (must be positive seconds)")
	}
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second

	if cfg.NetworkRetries < 0 {
		return fmt.Errorf("invalid network_retries (must not be negative)")
	}

	if cfg.HarvestIntervalSeconds <= 0 {
		return fmt.Errorf("invalid harvest_interval (must be positive seconds)")
	}
	cfg.HarvestInterval = time.Duration(cfg.HarvestIntervalSeconds) * time.Second

	if cfg.StorageTTLSeconds <= 0 {
		return fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.StorageTTL = time.Duration(cfg.StorageTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second

	return nil
}
