// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError is a single invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every invalid setting.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns ValidateErrors listing every
// problem, or nil.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg})
	}

	if !isHTTPURL(c.Local.OllamaURL) {
		add("local.ollama_url", "must be an http(s) url")
	}
	if c.Local.TimeoutSecs < 0 {
		add("local.timeout_secs", "must not be negative")
	}

	if c.Webhook.URL != "" && !isHTTPURL(c.Webhook.URL) {
		add("webhook.url", "must be an http(s) url")
	}
	// Discord caps message content at 2000 characters and embed fields at 1024.
	if c.Webhook.ContentLimit < 1 || c.Webhook.ContentLimit > 900 {
		add("webhook.content_limit", "must be between 1 and 900")
	}
	if c.Webhook.FieldLimit < 1 || c.Webhook.FieldLimit > 1000 {
		add("webhook.field_limit", "must be between 1 and 1000")
	}
	if c.Webhook.TimeoutSecs < 1 || c.Webhook.TimeoutSecs > 120 {
		add("webhook.timeout_secs", "must be between 1 and 120")
	}
	if c.Webhook.PerMinute < -1 {
		add("webhook.per_minute", "must be -1 (unlimited) or positive")
	}

	if len(c.UI.Starters) > 9 {
		add("ui.starters", "at most 9 starters can be selected by number")
	}
	for i, s := range c.UI.Starters {
		if strings.TrimSpace(s) == "" {
			add(fmt.Sprintf("ui.starters[%d]", i), "must not be blank")
		}
	}
	if c.UI.MaxAttachments < 0 {
		add("ui.max_attachments", "must not be negative")
	}
	switch c.UI.Theme {
	case "auto", "dark", "light":
	default:
		add("ui.theme", `must be "auto", "dark" or "light"`)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
