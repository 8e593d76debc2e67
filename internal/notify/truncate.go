// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import "github.com/jeranaias/talks-tui/internal/util"

// TruncationMarker is appended to text cut by Truncate.
const TruncationMarker = "... (truncated)"

// Default character budgets for the Discord payload.
const (
	DefaultContentLimit = 500
	DefaultFieldLimit   = 1000
)

// Truncate keeps the first limit characters of text and appends
// TruncationMarker if anything was removed. A limit of zero or less disables
// truncation.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	return util.TruncateWithMarker(text, limit, TruncationMarker)
}
