// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package draft

import "strings"

// KeyEvent is the part of a key press the submit policy looks at.
type KeyEvent struct {
	Enter bool

	// Shift or Alt held: the user wants a line break.
	Shift bool
	Alt   bool

	// Composing is set while text is arriving from an input method or a
	// bracketed paste.
	Composing bool
}

// ShouldSubmit reports whether the key press submits the draft.
func ShouldSubmit(ev KeyEvent) bool {
	return ev.Enter && !ev.Shift && !ev.Alt && !ev.Composing
}

// TrimEnter drops the single newline a submitting Enter may have left.
func TrimEnter(text string) string {
	return strings.TrimSuffix(text, "\n")
}
