// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the chat view component for the talks TUI.

The package is a Bubble Tea front end over the transcript store. It never
keeps its own copy of the conversation: everything it draws comes from a
*model.Transcript, and the only way it changes the conversation is through
Append, UpdateLastAnswer, SetResponding and Reset.

# Key Components

## Model (model.go)

The Model holds the transcript, the draft controller, a viewport for the
conversation, a textarea for input, a spinner for the pending answer and a
glamour renderer for finished answers.

## Streaming (streaming.go)

A request runs in a tea.Cmd. The stream goroutine converts Ollama chunks to
deltas and writes them into a per-request StreamingBuffer; a 33ms tick drains
the buffer into the open answer, and an auto-scroll tick keeps the newest
content in view. Both ticks carry the sequence number of the request that
armed them, so ending or cancelling a request (or resetting the
conversation) retires them: a tick from an older sequence is dropped and
never re-armed.

## View (view.go)

  - Welcome screen with title, subtitle and numbered starter prompts
  - Questions as right-aligned bubbles with their attachments
  - Answers with reasoning steps, tool names and markdown content
  - Spinner and pending indicator on the answer being streamed
  - Status bar with model, transient notices and the character counter

## Commands (commands.go)

  - /attach <path|url> - attach an image to the draft
  - /detach <n> - remove the n-th attachment
  - /new - archive the conversation and start a new one
  - /clear - clear the draft

# Usage

	tr := model.NewTranscript()
	m := chat.New(chat.Options{
		Config:     cfg,
		Theme:      styles.NewTheme(cfg.UI.Theme),
		Client:     ollama.NewClientWithConfig(clientCfg),
		Transcript: tr,
		Logger:     logger,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
*/
package chat
