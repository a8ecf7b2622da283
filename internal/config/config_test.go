package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DocumentURL != "http://localhost" {
		t.Fatalf("unexpected document url %q", cfg.DocumentURL)
	}
	if cfg.CredentialsMode != "same-origin" {
		t.Fatalf("unexpected credentials mode %q", cfg.CredentialsMode)
	}
	if cfg.Production {
		t.Fatalf("development env must not be production")
	}
	if cfg.NetworkRetries != 0 {
		t.Fatalf("network retries must default to disabled, got %d", cfg.NetworkRetries)
	}
	if cfg.RequestTimeout != 30*time.Second || cfg.HarvestInterval != 900*time.Second {
		t.Fatalf("unexpected durations %v %v", cfg.RequestTimeout, cfg.HarvestInterval)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DOCUMENT_URL", "https://canvas.example.com/courses")
	t.Setenv("CREDENTIALS_MODE", "Include")
	t.Setenv("NETWORK_RETRIES", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Production {
		t.Fatalf("production must follow app_env")
	}
	if cfg.CredentialsMode != "include" {
		t.Fatalf("unexpected credentials mode %q", cfg.CredentialsMode)
	}
	if cfg.NetworkRetries != 2 {
		t.Fatalf("unexpected network retries %d", cfg.NetworkRetries)
	}
}

func TestLoadProductionOverride(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("PRODUCTION", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Production {
		t.Fatalf("explicit production=false must win")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"document_url":     {"DOCUMENT_URL", "/relative"},
		"credentials_mode": {"CREDENTIALS_MODE", "always"},
		"harvest_interval": {"HARVEST_INTERVAL", "0"},
		"request_timeout":  {"REQUEST_TIMEOUT_SECONDS", "-1"},
		"network_retries":  {"NETWORK_RETRIES", "-3"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), "invalid") {
				t.Fatalf("expected invalid error, got %v", err)
			}
		})
	}
}
