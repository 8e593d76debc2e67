// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the talks TUI.

All colors are Lip Gloss AdaptiveColor values so they follow the terminal
background. The theme can be forced with the `ui.theme` config key:

	auto  - detect with termenv (default)
	dark  - always use the dark palette
	light - always use the light palette

# Color System (colors.go)

  - Purple - answers and the pending spinner
  - Cyan - brand, questions and starter numbers
  - Emerald - finished reasoning steps
  - Amber - running steps and notices
  - Rose - errors

Status messages always carry an ASCII indicator ([OK], [X], [!], [i]) so they
read without color.

# Theme (theme.go)

NewTheme builds the lipgloss styles once; the chat view reads them through
the Theme struct. GlamourStyle returns the matching glamour standard style
name for the markdown renderer.
*/
package styles
