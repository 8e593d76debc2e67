// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/talks-tui/internal/model"
)

func TestStreamingBufferFlushBySize(t *testing.T) {
	sb := NewStreamingBufferWithConfig(3, 1) // 1fps: only size triggers here

	sb.Write(model.Delta{Content: "A"})
	sb.Write(model.Delta{Content: "B"})
	_, ok := sb.Flush()
	assert.False(t, ok, "should not flush before reaching batch size")

	sb.Write(model.Delta{Content: "C"})
	deltas, ok := sb.Flush()
	require.True(t, ok)
	require.Len(t, deltas, 1)
	assert.Equal(t, "ABC", deltas[0].Content)
	assert.Zero(t, sb.Pending())
}

func TestStreamingBufferFlushByTime(t *testing.T) {
	sb := NewStreamingBufferWithConfig(100, 60)
	sb.Write(model.Delta{Content: "slow"})
	time.Sleep(20 * time.Millisecond)

	deltas, ok := sb.Flush()
	require.True(t, ok)
	assert.Equal(t, "slow", deltas[0].Content)
}

func TestStreamingBufferMergesTextOnly(t *testing.T) {
	sb := NewStreamingBuffer()
	sb.Write(model.Delta{Thinking: "look"})
	sb.Write(model.Delta{Thinking: "ing", Content: "Hi"})
	sb.Write(model.Delta{Tool: &model.ToolInvocation{Name: "search"}})
	sb.Write(model.Delta{Observation: "found"})
	sb.Write(model.Delta{Content: " there"})
	sb.Write(model.Delta{}) // ignored

	deltas, ok := sb.ForceFlush()
	require.True(t, ok)
	require.Len(t, deltas, 4)
	assert.Equal(t, "looking", deltas[0].Thinking)
	assert.Equal(t, "Hi", deltas[0].Content)
	assert.Equal(t, "search", deltas[1].Tool.Name)
	assert.Equal(t, "found", deltas[2].Observation)
	assert.Equal(t, " there", deltas[3].Content)
}

func TestStreamingBufferMergedResultMatchesUnmerged(t *testing.T) {
	writes := []model.Delta{
		{Thinking: "a"},
		{Content: "x"},
		{Thinking: "b"},
		{Tool: &model.ToolInvocation{Name: "t"}},
		{Thinking: "c"},
		{Content: "y"},
	}

	direct := model.NewTranscript()
	require.NoError(t, direct.Append(model.NewAnswer()))
	for _, d := range writes {
		require.NoError(t, direct.UpdateLastAnswer(d))
	}

	buffered := model.NewTranscript()
	require.NoError(t, buffered.Append(model.NewAnswer()))
	sb := NewStreamingBuffer()
	for _, d := range writes {
		sb.Write(d)
	}
	deltas, _ := sb.ForceFlush()
	for _, d := range deltas {
		require.NoError(t, buffered.UpdateLastAnswer(d))
	}

	want, _ := direct.LastAnswer()
	got, _ := buffered.LastAnswer()
	assert.Equal(t, want.Content, got.Content)
	assert.Equal(t, want.Thoughts, got.Thoughts)
}

func TestStreamingBufferReset(t *testing.T) {
	sb := NewStreamingBuffer()
	sb.Write(model.Delta{Content: "dropped"})
	sb.Reset()

	_, ok := sb.ForceFlush()
	assert.False(t, ok)
	assert.Zero(t, sb.Pending())
}
