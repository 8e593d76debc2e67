// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/talks-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete talks configuration.
type Config struct {
	Local   LocalConfig   `toml:"local"`
	Webhook WebhookConfig `toml:"webhook"`
	UI      UIConfig      `toml:"ui"`
	Storage StorageConfig `toml:"storage"`
	Log     LogConfig     `toml:"log"`
}

// LocalConfig points at the Ollama server that streams answers.
type LocalConfig struct {
	OllamaURL    string `toml:"ollama_url"`
	Model        string `toml:"model"`
	SystemPrompt string `toml:"system_prompt"`
	// TimeoutSecs bounds connecting to Ollama, not the stream itself.
	TimeoutSecs int `toml:"timeout_secs"`
}

// WebhookConfig configures completion notifications. An empty URL disables
// them.
type WebhookConfig struct {
	URL          string `toml:"url"`
	Username     string `toml:"username"`
	ContentLimit int    `toml:"content_limit"`
	FieldLimit   int    `toml:"field_limit"`
	TimeoutSecs  int    `toml:"timeout_secs"`
	PerMinute    int    `toml:"per_minute"`
}

// UIConfig holds the welcome screen and input settings.
type UIConfig struct {
	Title          string   `toml:"title"`
	Subtitle       string   `toml:"subtitle"`
	Starters       []string `toml:"starters"`
	MaxAttachments int      `toml:"max_attachments"`
	// Theme is "auto", "dark" or "light".
	Theme string `toml:"theme"`
	// Markdown renders answers through glamour.
	Markdown bool `toml:"markdown"`
}

// StorageConfig controls the conversation archive.
type StorageConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// LogConfig controls the diagnostic log.
type LogConfig struct {
	Debug bool   `toml:"debug"`
	Path  string `toml:"path"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultStarters are the conversation starters shown on the welcome screen.
var DefaultStarters = []string{
	"Dla kogo są zajęcia w Semio Academy i czego się tam nauczysz?",
	"Do czego służą takie narzędzia jak znak, kody, mapa kodów, RDE, kwadrat semiotyczny?",
	"Jak semiotyka marketingowa może pomóc w budowaniu odróżnialnego wizerunku marki?",
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Local: LocalConfig{
			OllamaURL:   "http://127.0.0.1:11434",
			Model:       "qwen2.5:7b",
			TimeoutSecs: 30,
		},
		Webhook: WebhookConfig{
			ContentLimit: 500,
			FieldLimit:   1000,
			TimeoutSecs:  10,
			PerMinute:    30,
		},
		UI: UIConfig{
			Title:          "Semio Academy Talks",
			Subtitle:       "Porozmawiaj z AI o naszych kursach",
			Starters:       append([]string(nil), DefaultStarters...),
			MaxAttachments: 3,
			Theme:          "auto",
			Markdown:       true,
		},
		Storage: StorageConfig{Enabled: true},
	}
}

// fillDefaults replaces zero values left by a partial config file.
func fillDefaults(cfg *Config) {
	def := Default()
	if cfg.Local.OllamaURL == "" {
		cfg.Local.OllamaURL = def.Local.OllamaURL
	}
	if cfg.Local.Model == "" {
		cfg.Local.Model = def.Local.Model
	}
	if cfg.Local.TimeoutSecs == 0 {
		cfg.Local.TimeoutSecs = def.Local.TimeoutSecs
	}
	if cfg.Webhook.ContentLimit == 0 {
		cfg.Webhook.ContentLimit = def.Webhook.ContentLimit
	}
	if cfg.Webhook.FieldLimit == 0 {
		cfg.Webhook.FieldLimit = def.Webhook.FieldLimit
	}
	if cfg.Webhook.TimeoutSecs == 0 {
		cfg.Webhook.TimeoutSecs = def.Webhook.TimeoutSecs
	}
	if cfg.Webhook.PerMinute == 0 {
		cfg.Webhook.PerMinute = def.Webhook.PerMinute
	}
	if cfg.UI.Title == "" {
		cfg.UI.Title = def.UI.Title
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = def.UI.Theme
	}
	if cfg.UI.MaxAttachments == 0 {
		cfg.UI.MaxAttachments = def.UI.MaxAttachments
	}
}

// =============================================================================
// PATHS
// =============================================================================

// Dir returns the talks home directory: $TALKS_HOME or ~/.talks.
func Dir() (string, error) {
	if dir := os.Getenv("TALKS_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".talks"), nil
}

// Path returns the default config file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// inDir resolves name inside the talks directory unless override is set.
func inDir(override, name string) (string, error) {
	if override != "" {
		return override, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// LogFile returns the log file path.
func (c *Config) LogFile() (string, error) { return inDir(c.Log.Path, "talks.log") }

// DatabaseFile returns the conversation archive path.
func (c *Config) DatabaseFile() (string, error) { return inDir(c.Storage.Path, "talks.db") }

// HistoryFile returns the line-mode input history path.
func (c *Config) HistoryFile() (string, error) { return inDir("", "history") }

// =============================================================================
// LOADING
// =============================================================================

// Load reads the default config file, applies environment overrides and
// validates the result. A missing file yields the defaults.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom is Load for an explicit path.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if err := ensureSecurePermissions(path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
		}
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	fillDefaults(cfg)
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// The webhook URL is a credential, so the file must be private.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode&0o077 != 0 {
		if err := os.Chmod(path, 0o600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// SAVING
// =============================================================================

const header = `# talks configuration file
# Edit with care: the webhook url is a secret.

`

// Save writes cfg to path as TOML with mode 0600.
func Save(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString(header)
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// String renders cfg as TOML with the webhook URL masked.
func (c *Config) String() string {
	masked := *c
	if masked.Webhook.URL != "" {
		masked.Webhook.URL = MaskURL(masked.Webhook.URL)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(masked); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return buf.String()
}

// MaskURL hides the token part of a webhook URL.
func MaskURL(u string) string {
	if len(u) <= 24 {
		return "****"
	}
	return u[:len(u)-16] + "****"
}

// =============================================================================
// DURATIONS
// =============================================================================

// Timeout returns the Ollama request timeout.
func (l LocalConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSecs) * time.Second
}

// Timeout returns the per-delivery webhook timeout.
func (w WebhookConfig) Timeout() time.Duration {
	return time.Duration(w.TimeoutSecs) * time.Second
}

// Enabled reports whether notifications are configured.
func (w WebhookConfig) Enabled() bool {
	return w.URL != ""
}
