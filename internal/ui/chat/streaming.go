// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/talks-tui/internal/model"
	"github.com/jeranaias/talks-tui/internal/ollama"
)

// Tick intervals while an answer streams.
const (
	streamTickInterval     = 33 * time.Millisecond
	autoScrollTickInterval = 100 * time.Millisecond
)

// =============================================================================
// STREAMING BUFFER
// =============================================================================

// StreamingBuffer batches deltas between renders. The stream goroutine
// writes; the Bubble Tea loop flushes when either the batch size is reached
// or enough time has passed since the last flush. Consecutive text deltas are
// merged so a flush applies as few updates as possible.
type StreamingBuffer struct {
	mu         sync.Mutex
	pending    []model.Delta
	tokenCount int
	lastFlush  time.Time

	batchSize  int
	minFlushMs time.Duration
}

// NewStreamingBuffer creates a buffer flushing every 15 tokens or at 30fps.
func NewStreamingBuffer() *StreamingBuffer {
	return NewStreamingBufferWithConfig(15, 30)
}

// NewStreamingBufferWithConfig creates a buffer with custom thresholds.
func NewStreamingBufferWithConfig(batchSize, maxFPS int) *StreamingBuffer {
	if batchSize <= 0 {
		batchSize = 15
	}
	if maxFPS <= 0 || maxFPS > 60 {
		maxFPS = 30
	}
	return &StreamingBuffer{
		batchSize:  batchSize,
		minFlushMs: time.Duration(1000/maxFPS) * time.Millisecond,
		lastFlush:  time.Now(),
	}
}

// Write queues a delta. Thread-safe.
func (sb *StreamingBuffer) Write(d model.Delta) {
	if d.IsEmpty() {
		return
	}
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if n := len(sb.pending); n > 0 && textOnly(sb.pending[n-1]) && textOnly(d) {
		sb.pending[n-1].Content += d.Content
		sb.pending[n-1].Thinking += d.Thinking
	} else {
		sb.pending = append(sb.pending, d)
	}
	sb.tokenCount++
}

// textOnly reports whether d carries only appended text, which merges
// without changing the result.
func textOnly(d model.Delta) bool {
	return d.Tool == nil && d.Observation == "" && len(d.Attachments) == 0
}

// Flush returns the queued deltas if a flush is due.
func (sb *StreamingBuffer) Flush() ([]model.Delta, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if len(sb.pending) == 0 {
		return nil, false
	}
	if sb.tokenCount < sb.batchSize && time.Since(sb.lastFlush) < sb.minFlushMs {
		return nil, false
	}
	return sb.takeLocked(), true
}

// ForceFlush returns everything queued regardless of thresholds. Used when a
// stream ends so nothing is lost.
func (sb *StreamingBuffer) ForceFlush() ([]model.Delta, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if len(sb.pending) == 0 {
		return nil, false
	}
	return sb.takeLocked(), true
}

func (sb *StreamingBuffer) takeLocked() []model.Delta {
	out := sb.pending
	sb.pending = nil
	sb.tokenCount = 0
	sb.lastFlush = time.Now()
	return out
}

// Pending returns the number of writes waiting to be flushed.
func (sb *StreamingBuffer) Pending() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.tokenCount
}

// Reset drops everything queued.
func (sb *StreamingBuffer) Reset() {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.pending = nil
	sb.tokenCount = 0
	sb.lastFlush = time.Now()
}

// =============================================================================
// REQUESTS
// =============================================================================

// Streamer is the backend the chat view requests answers from.
type Streamer interface {
	ChatStream(ctx context.Context, messages []ollama.Message, callback ollama.StreamCallback) error
	CheckRunning(ctx context.Context) error
	Model() string
}

// request is the answer currently being streamed. Each request owns its
// buffer, so a cancelled stream that is still winding down writes into a
// buffer nobody reads.
type request struct {
	answerID   string
	generation uint64
	seq        int
	buffer     *StreamingBuffer
	started    time.Time
}

// streamCmd runs the request and reports how it ended.
func streamCmd(ctx context.Context, client Streamer, messages []ollama.Message, req *request) tea.Cmd {
	return func() tea.Msg {
		var final ollama.StreamChunk
		err := client.ChatStream(ctx, messages, func(chunk ollama.StreamChunk) {
			for _, d := range ollama.ToDelta(chunk) {
				req.buffer.Write(d)
			}
			if chunk.Done {
				final = chunk
			}
		})
		switch {
		case errors.Is(err, context.Canceled):
			return StreamDoneMsg{AnswerID: req.answerID, Generation: req.generation, Canceled: true}
		case err != nil:
			return StreamErrorMsg{AnswerID: req.answerID, Generation: req.generation, Err: err}
		}
		return StreamDoneMsg{AnswerID: req.answerID, Generation: req.generation, Final: final}
	}
}

// streamTickCmd drains the buffer at ~30fps.
func streamTickCmd(seq int) tea.Cmd {
	return tea.Tick(streamTickInterval, func(t time.Time) tea.Msg {
		return StreamTickMsg{Seq: seq, Time: t}
	})
}

// autoScrollCmd arms the next auto-scroll tick.
func autoScrollCmd(seq int) tea.Cmd {
	return tea.Tick(autoScrollTickInterval, func(time.Time) tea.Msg {
		return AutoScrollTickMsg{Seq: seq}
	})
}

// checkBackendCmd pings Ollama once at startup.
func checkBackendCmd(client Streamer) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return BackendStatusMsg{Err: client.CheckRunning(ctx)}
	}
}
