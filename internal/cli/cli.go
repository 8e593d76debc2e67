// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/talks-tui/internal/config"
	"github.com/jeranaias/talks-tui/internal/draft"
	"github.com/jeranaias/talks-tui/internal/model"
	"github.com/jeranaias/talks-tui/internal/notify"
	"github.com/jeranaias/talks-tui/internal/ollama"
	"github.com/jeranaias/talks-tui/internal/storage"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// closeTimeout bounds waiting for in-flight webhook deliveries on exit.
const closeTimeout = 5 * time.Second

const rootLongDesc string = `Chat with a local Ollama model.

Answers stream into a full screen transcript. Every finished answer can be
posted to a Discord webhook together with its question, and finished
conversations are archived in a local SQLite database.

Configuration is read from $TALKS_HOME/config.toml (default ~/.talks),
then from TALKS_* environment variables and a .env file in the working
directory, then from the flags below.

Examples:
  talks
  talks --model llama3.2 --webhook https://discord.com/api/webhooks/...
  talks chat
  talks history list --limit 5`

const rootShortDesc string = "Chat with a local model and get notified of answers"

// rootCommander holds the persistent flags and the loaded config shared by
// every subcommand.
type rootCommander struct {
	configPath string
	debug      bool
	model      string
	ollamaURL  string
	webhook    string
	noArchive  bool

	// Set by load.
	path string
	cfg  *config.Config
}

// Execute runs the talks command line.
func Execute() error {
	return newRootCmd().ExecuteContext(context.Background())
}

func newRootCmd() *cobra.Command {
	cmder := &rootCommander{}

	cmd := &cobra.Command{
		Use:           "talks",
		Short:         rootShortDesc,
		Long:          rootLongDesc,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.load()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.runTUI(cmd.Context())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&cmder.configPath, "config", "c", "", "Path to the config file (default $TALKS_HOME/config.toml)")
	flags.BoolVar(&cmder.debug, "debug", false, "Enable debug logging")
	flags.StringVarP(&cmder.model, "model", "m", "", "Ollama model to chat with")
	flags.StringVar(&cmder.ollamaURL, "ollama-url", "", "Ollama server URL")
	flags.StringVar(&cmder.webhook, "webhook", "", "Discord webhook URL for completion notifications")
	flags.BoolVar(&cmder.noArchive, "no-archive", false, "Do not archive conversations")

	cmd.AddCommand(
		newChatCmd(cmder),
		newHistoryCmd(cmder),
		newWebhookCmd(cmder),
		newConfigCmd(cmder),
	)

	return cmd
}

// load reads .env, the config file and the environment, then applies the
// flags.
func (c *rootCommander) load() error {
	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("could not load .env: %w", err)
	}

	path := c.configPath
	if path == "" {
		p, err := config.Path()
		if err != nil {
			return err
		}
		path = p
	}

	cfg, err := config.LoadFrom(path)
	if err != nil {
		return err
	}
	if err := c.applyFlags(cfg); err != nil {
		return err
	}

	c.path = path
	c.cfg = cfg
	return nil
}

// applyFlags overrides cfg with the flags that were set. It runs again on
// every config reload so flags keep winning.
func (c *rootCommander) applyFlags(cfg *config.Config) error {
	if c.debug {
		cfg.Log.Debug = true
	}
	if c.model != "" {
		cfg.Local.Model = c.model
	}
	if c.ollamaURL != "" {
		cfg.Local.OllamaURL = c.ollamaURL
	}
	if c.webhook != "" {
		cfg.Webhook.URL = c.webhook
	}
	if c.noArchive {
		cfg.Storage.Enabled = false
	}
	return cfg.Validate()
}

// =============================================================================
// SHARED SERVICES
// =============================================================================

// services are the pieces shared by the full screen and line mode chats.
type services struct {
	client     *ollama.Client
	transcript *model.Transcript
	notifier   *notify.Notifier
	archive    *storage.Archive
	images     *draft.Store
	logger     *zap.Logger
}

// newServices builds the client, the transcript with its notifier attached
// and, when enabled, the archive.
func newServices(cfg *config.Config, logger *zap.Logger) (*services, error) {
	var dbPath string
	if cfg.Storage.Enabled {
		path, err := cfg.DatabaseFile()
		if err != nil {
			return nil, err
		}
		dbPath = path
	}

	sink, err := newSink(cfg.Webhook)
	if err != nil {
		return nil, err
	}

	s := &services{
		client:     newClient(cfg.Local),
		transcript: model.NewTranscript(),
		images:     draft.NewStore(),
		logger:     logger,
		notifier: notify.New(notify.Options{
			Sink:    sink,
			Timeout: cfg.Webhook.Timeout(),
			Logger:  logger,
		}),
	}
	s.notifier.Attach(s.transcript)

	if dbPath != "" {
		archive, err := storage.Open(dbPath)
		if err != nil {
			// Chatting works without the archive.
			logger.Warn("archive unavailable", zap.String("path", dbPath), zap.Error(err))
		} else {
			s.archive = archive
		}
	}

	if cfg.Webhook.Enabled() {
		logger.Info("webhook notifications enabled", zap.String("url", config.MaskURL(cfg.Webhook.URL)))
	}
	return s, nil
}

// close waits for pending deliveries and closes the archive.
func (s *services) close() {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := s.notifier.Close(ctx); err != nil {
		s.logger.Warn("webhook deliveries abandoned", zap.Error(err))
	}
	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			s.logger.Warn("close archive", zap.Error(err))
		}
	}
}

func newClient(cfg config.LocalConfig) *ollama.Client {
	return ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:        cfg.OllamaURL,
		Model:          cfg.Model,
		ConnectTimeout: cfg.Timeout(),
	})
}

// newSink returns the Discord sink, or a sink that drops everything when no
// webhook is configured.
func newSink(cfg config.WebhookConfig) (notify.Sink, error) {
	if !cfg.Enabled() {
		return notify.NopSink{}, nil
	}
	sink, err := newDiscordSink(cfg)
	if err != nil {
		return nil, err
	}
	return sink, nil
}

func newDiscordSink(cfg config.WebhookConfig) (*notify.DiscordSink, error) {
	return notify.NewDiscordSink(notify.DiscordConfig{
		URL:          cfg.URL,
		ContentLimit: cfg.ContentLimit,
		FieldLimit:   cfg.FieldLimit,
		Username:     cfg.Username,
		PerMinute:    cfg.PerMinute,
	})
}
