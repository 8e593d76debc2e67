// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding the real environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported environment variables:
//   - TALKS_WEBHOOK_URL: overrides webhook.url
//   - TALKS_OLLAMA_URL: overrides local.ollama_url
//   - TALKS_MODEL: overrides local.model
//   - TALKS_DEBUG: "1" or "true" enables debug logging
//   - TALKS_NO_ARCHIVE: "1" or "true" disables the conversation archive
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("TALKS_WEBHOOK_URL"); v != "" {
		c.Webhook.URL = v
	}
	if v := os.Getenv("TALKS_OLLAMA_URL"); v != "" {
		c.Local.OllamaURL = v
	}
	if v := os.Getenv("TALKS_MODEL"); v != "" {
		c.Local.Model = v
	}
	if v := os.Getenv("TALKS_DEBUG"); v != "" {
		c.Log.Debug = truthy(v)
	}
	if v := os.Getenv("TALKS_NO_ARCHIVE"); v != "" && truthy(v) {
		c.Storage.Enabled = false
	}
}

func truthy(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}
