// Package config loads tutor configuration from a TOML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Backend names for session storage.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

const defaultConfigRelativePath = ".config/socratex/config.toml"

// DefaultPath returns the conventional config file location, or empty
// when the home directory cannot be resolved.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, defaultConfigRelativePath)
}

// Provider configures the model backend.
type Provider struct {
	Name        string   `toml:"name"`
	Model       string   `toml:"model"`
	APIKey      string   `toml:"api_key"`
	BaseURL     string   `toml:"base_url"`
	MaxTokens   int      `toml:"max_tokens"`
	Temperature *float64 `toml:"temperature"`
}

// Storage configures session persistence.
type Storage struct {
	Backend string `toml:"backend"`
	Dir     string `toml:"dir"`
}

// Media configures OCR and speech.
type Media struct {
	OCREndpoint       string `toml:"ocr_endpoint"`
	OCRTimeoutSeconds int    `toml:"ocr_timeout_seconds"`
	SpeechAPIKey      string `toml:"speech_api_key"`
	SpeechBaseURL     string `toml:"speech_base_url"`
	SpeechModel       string `toml:"speech_model"`
	SpeechVoice       string `toml:"speech_voice"`
}

// Tutor configures the teaching persona.
type Tutor struct {
	PersonaPath string `toml:"persona_path"`
}

// TUI configures the terminal interface.
type TUI struct {
	Theme string `toml:"theme"`
}

// Config is the validated application configuration.
type Config struct {
	Provider Provider `toml:"provider"`
	Storage  Storage  `toml:"storage"`
	Media    Media    `toml:"media"`
	Tutor    Tutor    `toml:"tutor"`
	TUI      TUI      `toml:"tui"`
}

// Default returns the baseline configuration before file and
// environment layers apply.
func Default() Config {
	dir := ".socratex"
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, ".socratex")
	}
	return Config{
		Provider: Provider{
			Name:      ProviderAnthropic,
			Model:     "claude-sonnet-4-5",
			MaxTokens: 1024,
		},
		Storage: Storage{
			Backend: BackendFile,
			Dir:     dir,
		},
		Media: Media{
			OCRTimeoutSeconds: 30,
		},
		TUI: TUI{
			Theme: "dark",
		},
	}
}

// Load reads the config file, applies environment overrides, and
// validates the result. An empty path falls back to DefaultPath; a
// missing file at the default location is not an error, an explicitly
// named missing file is.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		path = DefaultPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case os.IsNotExist(err) && !explicit:
			// No file at the conventional location; defaults apply.
		default:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv layers environment overrides on top of file values.
func (c *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	setString(&c.Provider.Name, "SOCRATEX_PROVIDER")
	setString(&c.Provider.Model, "SOCRATEX_MODEL")
	setString(&c.Provider.BaseURL, "SOCRATEX_BASE_URL")
	setString(&c.Storage.Backend, "SOCRATEX_STORAGE_BACKEND")
	setString(&c.Storage.Dir, "SOCRATEX_STORAGE_DIR")
	setString(&c.Media.OCREndpoint, "SOCRATEX_OCR_ENDPOINT")
	setString(&c.Tutor.PersonaPath, "SOCRATEX_PERSONA")
	setString(&c.TUI.Theme, "SOCRATEX_THEME")

	if v := strings.TrimSpace(os.Getenv("SOCRATEX_MAX_TOKENS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Provider.MaxTokens = n
		}
	}

	// Provider keys come from the conventional variables when the file
	// leaves them empty, so keys stay out of config files.
	if c.Provider.APIKey == "" {
		c.Provider.APIKey = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	}
	if c.Media.SpeechAPIKey == "" {
		c.Media.SpeechAPIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case ProviderAnthropic, ProviderMock:
	default:
		return fmt.Errorf("config: unknown provider %q", c.Provider.Name)
	}
	if strings.TrimSpace(c.Provider.Model) == "" {
		return fmt.Errorf("config: provider model is required")
	}
	if c.Provider.MaxTokens <= 0 {
		return fmt.Errorf("config: max_tokens must be positive, got %d", c.Provider.MaxTokens)
	}

	switch c.Storage.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if strings.TrimSpace(c.Storage.Dir) == "" {
		return fmt.Errorf("config: storage dir is required")
	}

	if c.Media.OCRTimeoutSeconds <= 0 {
		return fmt.Errorf("config: ocr_timeout_seconds must be positive, got %d", c.Media.OCRTimeoutSeconds)
	}
	return nil
}

// OCRTimeout returns the OCR timeout as a duration.
func (c *Config) OCRTimeout() time.Duration {
	return time.Duration(c.Media.OCRTimeoutSeconds) * time.Second
}

// SessionDBPath returns the sqlite database location under the
// storage dir.
func (c *Config) SessionDBPath() string {
	return filepath.Join(c.Storage.Dir, "sessions.db")
}

// SessionFileDir returns the file-backend directory under the storage
// dir.
func (c *Config) SessionFileDir() string {
	return filepath.Join(c.Storage.Dir, "sessions")
}

// LogPath returns the log file location under the storage dir.
func (c *Config) LogPath() string {
	return filepath.Join(c.Storage.Dir, "socratex.log")
}
