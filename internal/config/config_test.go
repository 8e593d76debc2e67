// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points TALKS_HOME at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TALKS_HOME", dir)
	for _, k := range []string{"TALKS_WEBHOOK_URL", "TALKS_OLLAMA_URL", "TALKS_MODEL", "TALKS_DEBUG", "TALKS_NO_ARCHIVE"} {
		t.Setenv(k, "")
	}
	return dir
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.UI.Starters, 3)
	assert.Equal(t, "Semio Academy Talks", cfg.UI.Title)
	assert.False(t, cfg.Webhook.Enabled())
	assert.Equal(t, 10*time.Second, cfg.Webhook.Timeout())
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	body := `
[webhook]
url = "https://discord.com/api/webhooks/1/token"
field_limit = 800

[ui]
starters = ["What courses do you offer?"]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://discord.com/api/webhooks/1/token", cfg.Webhook.URL)
	assert.Equal(t, 800, cfg.Webhook.FieldLimit)
	assert.Equal(t, 500, cfg.Webhook.ContentLimit)
	assert.Equal(t, []string{"What courses do you offer?"}, cfg.UI.Starters)
	assert.Equal(t, "http://127.0.0.1:11434", cfg.Local.OllamaURL)
}

func TestLoad_InvalidValues(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	body := `
[webhook]
url = "discord"
field_limit = 5000

[ui]
theme = "neon"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	_, err := LoadFrom(path)
	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	fields := make([]string, len(verrs))
	for i, v := range verrs {
		fields[i] = v.Field
	}
	assert.ElementsMatch(t, []string{"webhook.url", "webhook.field_limit", "ui.theme"}, fields)
}

func TestLoad_BadTOML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[webhook\nurl="), 0o600))
	_, err := LoadFrom(path)
	assert.ErrorContains(t, err, "failed to decode")
}

func TestLoad_FixesPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced on windows")
	}
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	_, err := LoadFrom(path)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("TALKS_WEBHOOK_URL", "https://example.com/hook")
	t.Setenv("TALKS_MODEL", "llama3.2")
	t.Setenv("TALKS_DEBUG", "true")
	t.Setenv("TALKS_NO_ARCHIVE", "1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/hook", cfg.Webhook.URL)
	assert.Equal(t, "llama3.2", cfg.Local.Model)
	assert.True(t, cfg.Log.Debug)
	assert.False(t, cfg.Storage.Enabled)
}

func TestLoadDotEnv(t *testing.T) {
	isolate(t)
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("TALKS_MODEL=from-dotenv\n"), 0o600))
	t.Setenv("TALKS_MODEL", "")
	os.Unsetenv("TALKS_MODEL")

	require.NoError(t, LoadDotEnv(envFile, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "from-dotenv", os.Getenv("TALKS_MODEL"))
}

func TestSave_RoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "config.toml")

	cfg := Default()
	cfg.Webhook.URL = "https://discord.com/api/webhooks/1/secret-token-value"
	cfg.UI.Starters = []string{"one", "two"}
	require.NoError(t, Save(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# talks configuration file"))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestString_MasksWebhook(t *testing.T) {
	cfg := Default()
	cfg.Webhook.URL = "https://discord.com/api/webhooks/1366/thOBVYr-secret"
	out := cfg.String()
	assert.NotContains(t, out, "thOBVYr-secret")
	assert.Contains(t, out, "****")
	assert.Equal(t, "https://discord.com/api/webhooks/1366/thOBVYr-secret", cfg.Webhook.URL)
}

func TestPaths(t *testing.T) {
	dir := isolate(t)
	cfg := Default()
	p, err := cfg.DatabaseFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "talks.db"), p)

	cfg.Log.Path = "/var/log/talks.log"
	p, err = cfg.LogFile()
	require.NoError(t, err)
	assert.Equal(t, "/var/log/talks.log", p)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, Save(Default(), path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path, nil, func(c *Config) { changes <- c }) }()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)

	cfg := Default()
	cfg.UI.Title = "Reloaded"
	require.NoError(t, Save(cfg, path))

	select {
	case got := <-changes:
		assert.Equal(t, "Reloaded", got.UI.Title)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after config change")
	}

	cancel()
	assert.NoError(t, <-done)
}
