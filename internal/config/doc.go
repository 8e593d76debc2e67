// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and saves the talks configuration.
//
// # Configuration Precedence
//
//   - Environment variables (TALKS_*), including those from a .env file
//   - ~/.talks/config.toml (or $TALKS_HOME/config.toml)
//   - Built-in defaults
//
// # Usage
//
//	_ = config.LoadDotEnv()
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	if cfg.Webhook.Enabled() {
//	    // build the webhook sink from cfg.Webhook
//	}
//
// The Config is passed explicitly to every component that needs it; there is
// no package-level instance.
package config
