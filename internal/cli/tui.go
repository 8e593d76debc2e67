// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/talks-tui/internal/config"
	"github.com/jeranaias/talks-tui/internal/logging"
	"github.com/jeranaias/talks-tui/internal/ui/chat"
	"github.com/jeranaias/talks-tui/internal/ui/styles"
)

// runTUI opens the full screen chat. The TUI owns the terminal, so logs go
// to the log file.
func (c *rootCommander) runTUI(ctx context.Context) error {
	if !IsTTY() || !IsStdoutTTY() {
		return fmt.Errorf("talks needs a terminal; use 'talks chat' for line mode")
	}

	logPath, err := c.cfg.LogFile()
	if err != nil {
		return err
	}
	logger, closeLog, err := logging.NewFile(logPath, c.cfg.Log.Debug)
	if err != nil {
		return err
	}
	defer closeLog()

	svc, err := newServices(c.cfg, logger)
	if err != nil {
		return err
	}
	defer svc.close()

	m := chat.New(chat.Options{
		Config:     c.cfg,
		Theme:      styles.NewTheme(c.cfg.UI.Theme),
		Client:     svc.client,
		Transcript: svc.transcript,
		Archive:    svc.archive,
		Images:     svc.images,
		Logger:     logger,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go c.watchConfig(watchCtx, logger, p)

	logger.Info("chat started", zap.String("model", svc.client.Model()))
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("chat: %w", err)
	}

	if fm, ok := final.(chat.Model); ok {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := fm.Shutdown(shutdownCtx); err != nil {
			logger.Warn("archive on exit failed", zap.Error(err))
		}
	}
	return nil
}

// watchConfig forwards config file edits to the running chat. Flags are
// applied again so they keep overriding the file.
func (c *rootCommander) watchConfig(ctx context.Context, logger *zap.Logger, p *tea.Program) {
	err := config.Watch(ctx, c.path, logger, func(cfg *config.Config) {
		if err := c.applyFlags(cfg); err != nil {
			logger.Warn("reloaded config rejected", zap.Error(err))
			return
		}
		logger.Info("config reloaded", zap.String("path", c.path))
		p.Send(chat.ConfigChangedMsg{Config: cfg})
	})
	if err != nil {
		logger.Debug("config watch disabled", zap.String("path", c.path), zap.Error(err))
	}
}
