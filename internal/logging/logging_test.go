// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false, false)
	logger.Debug("hidden")
	logger.Info("completion notification sent", zap.String("answer_id", "a1"))
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "completion notification sent")
	assert.Contains(t, out, `"answer_id": "a1"`)

	buf.Reset()
	debug := New(&buf, true, false)
	debug.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "talks.log")
	logger, closeFn, err := NewFile(path, false)
	require.NoError(t, err)

	logger.Warn("completion notification failed")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "WARN")
	assert.Contains(t, string(data), "completion notification failed")
}
