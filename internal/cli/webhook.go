// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/talks-tui/internal/config"
	"github.com/jeranaias/talks-tui/internal/notify"
)

const webhookLongDesc string = `Manage the completion webhook.

Every answer that finishes streaming is posted to the configured Discord
webhook with its question. Set the URL with webhook.url in the config
file, TALKS_WEBHOOK_URL or --webhook.

Examples:
  talks webhook test
  talks webhook test --webhook https://discord.com/api/webhooks/...`

const webhookShortDesc string = "Manage the completion webhook"

const webhookTestShortDesc string = "Send a test message to the webhook"

type webhookCommander struct {
	root *rootCommander
}

func newWebhookCmd(root *rootCommander) *cobra.Command {
	cmder := &webhookCommander{root: root}

	cmd := &cobra.Command{
		Use:   "webhook",
		Short: webhookShortDesc,
		Long:  webhookLongDesc,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: webhookTestShortDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.runTest(cmd.Context(), cmd)
		},
	})

	return cmd
}

func (c *webhookCommander) runTest(ctx context.Context, cmd *cobra.Command) error {
	cfg := c.root.cfg.Webhook
	if !cfg.Enabled() {
		return notify.ErrNoWebhook
	}

	sink, err := newDiscordSink(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	text := fmt.Sprintf("Test message from talks at %s", time.Now().Format(time.RFC3339))
	if err := sink.SendText(ctx, text); err != nil {
		return fmt.Errorf("webhook test failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Sent test message to %s\n", config.MaskURL(cfg.URL))
	return nil
}
