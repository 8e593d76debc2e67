// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/jeranaias/talks-tui/internal/config"
	"github.com/jeranaias/talks-tui/internal/ollama"
)

// =============================================================================
// STREAMING MESSAGES
// =============================================================================

// StreamDoneMsg signals that a request finished, successfully or by
// cancellation.
type StreamDoneMsg struct {
	AnswerID   string
	Generation uint64
	// Final is the done chunk carrying token counts; zero when cancelled.
	Final    ollama.StreamChunk
	Canceled bool
}

// StreamErrorMsg signals that a request failed.
type StreamErrorMsg struct {
	AnswerID   string
	Generation uint64
	Err        error
}

// StreamTickMsg drains the streaming buffer.
type StreamTickMsg struct {
	Seq  int
	Time time.Time
}

// AutoScrollTickMsg keeps the newest content in view while responding.
type AutoScrollTickMsg struct {
	Seq int
}

// =============================================================================
// BACKEND MESSAGES
// =============================================================================

// BackendStatusMsg reports whether Ollama answered the health check.
type BackendStatusMsg struct {
	Err error
}

// =============================================================================
// DRAFT MESSAGES
// =============================================================================

// UploadDoneMsg reports the outcome of a local image upload.
type UploadDoneMsg struct {
	FileID   string
	UploadID string
	Err      error
}

// NoticeExpiredMsg clears a transient status notice.
type NoticeExpiredMsg struct {
	Seq int
}

// =============================================================================
// CONVERSATION MESSAGES
// =============================================================================

// ArchivedMsg reports the outcome of archiving a conversation.
type ArchivedMsg struct {
	ID    string
	Saved bool
	Err   error
}

// ConfigChangedMsg delivers a reloaded configuration.
type ConfigChangedMsg struct {
	Config *config.Config
}
