package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider.Name != ProviderAnthropic {
		t.Fatalf("Provider.Name = %q", cfg.Provider.Name)
	}
	if cfg.Storage.Backend != BackendFile {
		t.Fatalf("Storage.Backend = %q", cfg.Storage.Backend)
	}
	if cfg.Provider.MaxTokens != 1024 {
		t.Fatalf("Provider.MaxTokens = %d", cfg.Provider.MaxTokens)
	}
	if got := cfg.OCRTimeout(); got != 30*time.Second {
		t.Fatalf("OCRTimeout() = %v", got)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfigFile(t, `
[provider]
model = "claude-haiku-4-5"
max_tokens = 512
temperature = 0.2

[storage]
backend = "sqlite"
dir = "/tmp/socratex-test"

[media]
ocr_endpoint = "http://localhost:9090/ocr"

[tui]
theme = "light"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider.Model != "claude-haiku-4-5" {
		t.Fatalf("Provider.Model = %q", cfg.Provider.Model)
	}
	if cfg.Provider.MaxTokens != 512 {
		t.Fatalf("Provider.MaxTokens = %d", cfg.Provider.MaxTokens)
	}
	if cfg.Provider.Temperature == nil || *cfg.Provider.Temperature != 0.2 {
		t.Fatalf("Provider.Temperature = %v", cfg.Provider.Temperature)
	}
	if cfg.Storage.Backend != BackendSQLite {
		t.Fatalf("Storage.Backend = %q", cfg.Storage.Backend)
	}
	if got := cfg.SessionDBPath(); got != filepath.Join("/tmp/socratex-test", "sessions.db") {
		t.Fatalf("SessionDBPath() = %q", got)
	}
	if cfg.TUI.Theme != "light" {
		t.Fatalf("TUI.Theme = %q", cfg.TUI.Theme)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
[provider]
model = "from-file"
`)
	t.Setenv("SOCRATEX_MODEL", "from-env")
	t.Setenv("SOCRATEX_STORAGE_BACKEND", "sqlite")
	t.Setenv("SOCRATEX_MAX_TOKENS", "2048")
	t.Setenv("ANTHROPIC_API_KEY", "env-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider.Model != "from-env" {
		t.Fatalf("Provider.Model = %q, want env override", cfg.Provider.Model)
	}
	if cfg.Storage.Backend != BackendSQLite {
		t.Fatalf("Storage.Backend = %q, want env override", cfg.Storage.Backend)
	}
	if cfg.Provider.MaxTokens != 2048 {
		t.Fatalf("Provider.MaxTokens = %d, want env override", cfg.Provider.MaxTokens)
	}
	if cfg.Provider.APIKey != "env-key" {
		t.Fatalf("Provider.APIKey = %q, want env fallback", cfg.Provider.APIKey)
	}
}

func TestLoadFileKeyWinsOverEnv(t *testing.T) {
	path := writeConfigFile(t, `
[provider]
api_key = "file-key"
`)
	t.Setenv("ANTHROPIC_API_KEY", "env-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider.APIKey != "file-key" {
		t.Fatalf("Provider.APIKey = %q, want file value", cfg.Provider.APIKey)
	}
}

func TestLoadDefaultLocation(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "socratex")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	content := "[tui]\ntheme = \"light\"\n"
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TUI.Theme != "light" {
		t.Fatalf("TUI.Theme = %q, want value from default location", cfg.TUI.Theme)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("Load() error = nil, want read error")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Provider.Name = "bard" },
			wantSub: "unknown provider",
		},
		{
			name:    "empty model",
			mutate:  func(c *Config) { c.Provider.Model = " " },
			wantSub: "model is required",
		},
		{
			name:    "bad max tokens",
			mutate:  func(c *Config) { c.Provider.MaxTokens = 0 },
			wantSub: "max_tokens",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Storage.Backend = "redis" },
			wantSub: "unknown storage backend",
		},
		{
			name:    "bad ocr timeout",
			mutate:  func(c *Config) { c.Media.OCRTimeoutSeconds = -1 },
			wantSub: "ocr_timeout_seconds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantSub) {
				t.Fatalf("Validate() error = %v, want %q", err, tt.wantSub)
			}
		})
	}
}
