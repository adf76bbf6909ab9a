package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("LEAFMETRIC_API_URL", "")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.BaseURL != DefaultBaseURL {
		t.Errorf("base url = %q, want %q", cfg.API.BaseURL, DefaultBaseURL)
	}
	if cfg.API.Timeout.Std() != DefaultTimeout {
		t.Errorf("timeout = %v", cfg.API.Timeout.Std())
	}
	if cfg.Storage.Backend != "file" {
		t.Errorf("backend = %q", cfg.Storage.Backend)
	}
	if cfg.MinAnalyzeDuration() != DefaultMinAnalyzeDuration {
		t.Errorf("min analyze = %v", cfg.MinAnalyzeDuration())
	}
	if cfg.ML.Type != "local" {
		t.Errorf("ml type = %q", cfg.ML.Type)
	}
	if cfg.Source != "" {
		t.Errorf("source = %q for a missing file", cfg.Source)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("LEAFMETRIC_API_URL", "")
	path := writeConfig(t, `{
		"api": {"base_url": "https://tea.example", "timeout": "5s"},
		"storage": {"backend": "memory"},
		"workflow": {"min_analyze_duration": "0s"},
		"server": {"port": "9000", "jwt_secret": "s3cret"}
	}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Source != path {
		t.Errorf("source = %q, want %q", cfg.Source, path)
	}
	if cfg.API.BaseURL != "https://tea.example" {
		t.Errorf("base url = %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout.Std() != 5*time.Second {
		t.Errorf("timeout = %v", cfg.API.Timeout.Std())
	}
	if cfg.MinAnalyzeDuration() != 0 {
		t.Errorf("explicit zero min analyze duration was replaced by %v", cfg.MinAnalyzeDuration())
	}
	if err := cfg.ValidateServer(); err != nil {
		t.Errorf("ValidateServer: %v", err)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("LEAFMETRIC_API_URL", "http://override:1")
	path := writeConfig(t, `{"api": {"base_url": "https://tea.example"}}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.BaseURL != "http://override:1" {
		t.Errorf("base url = %q", cfg.API.BaseURL)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, `{"api":`)); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := LoadConfig(writeConfig(t, `{"api": {"timeout": "soon"}}`)); err == nil {
		t.Fatal("expected duration error")
	}
}

func TestValidateServerRequiresPort(t *testing.T) {
	var cfg Config
	cfg.Server.JWTSecret = "x"
	if err := cfg.ValidateServer(); err == nil {
		t.Fatal("expected error for missing port")
	}
}

func TestGetConfigPathEnv(t *testing.T) {
	t.Setenv("LEAFMETRIC_CONFIG", "/etc/leafmetric.json")
	if got := GetConfigPath(); got != "/etc/leafmetric.json" {
		t.Errorf("GetConfigPath = %q", got)
	}
}
