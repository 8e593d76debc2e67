// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme modes accepted by NewTheme.
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
)

// Theme holds all the styled components for the application.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// HEADER
	// ==========================================================================

	Title    lipgloss.Style
	Subtitle lipgloss.Style

	// ==========================================================================
	// TRANSCRIPT
	// ==========================================================================

	Question    lipgloss.Style
	Answer      lipgloss.Style
	RoleLabel   lipgloss.Style
	Attachment  lipgloss.Style
	Thought     lipgloss.Style
	StepDone    lipgloss.Style
	StepRunning lipgloss.Style
	Pending     lipgloss.Style
	Spinner     lipgloss.Style
	Observation lipgloss.Style

	// ==========================================================================
	// WELCOME
	// ==========================================================================

	StarterIndex lipgloss.Style
	Starter      lipgloss.Style
	Hint         lipgloss.Style

	// ==========================================================================
	// INPUT AND STATUS BAR
	// ==========================================================================

	InputBorder      lipgloss.Style
	CharCount        lipgloss.Style
	CharCountWarning lipgloss.Style
	File             lipgloss.Style
	FileFailed       lipgloss.Style
	StatusBar        lipgloss.Style
	Notice           lipgloss.Style
	Error            lipgloss.Style
}

// NewTheme creates a theme for mode ("auto", "dark" or "light"; anything
// else is treated as auto).
func NewTheme(mode string) *Theme {
	profile := termenv.ColorProfile()

	var isDark bool
	switch mode {
	case ModeDark:
		isDark = true
		lipgloss.SetHasDarkBackground(true)
	case ModeLight:
		isDark = false
		lipgloss.SetHasDarkBackground(false)
	default:
		isDark = termenv.HasDarkBackground()
	}

	return &Theme{
		IsDark:       isDark,
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,

		Title:    lipgloss.NewStyle().Foreground(Cyan).Bold(true),
		Subtitle: lipgloss.NewStyle().Foreground(TextSecondary).Italic(true),

		Question: lipgloss.NewStyle().
			Background(QuestionBg).
			Foreground(QuestionFg).
			Padding(0, 1),
		Answer: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(AnswerBorder).
			PaddingLeft(1),
		RoleLabel:   lipgloss.NewStyle().Foreground(TextMuted).Bold(true),
		Attachment:  lipgloss.NewStyle().Foreground(LinkColor).Underline(true),
		Thought:     lipgloss.NewStyle().Foreground(TextSecondary).Italic(true),
		StepDone:    lipgloss.NewStyle().Foreground(Emerald),
		StepRunning: lipgloss.NewStyle().Foreground(Amber),
		Pending:     lipgloss.NewStyle().Foreground(TextMuted).Italic(true),
		Spinner:     lipgloss.NewStyle().Foreground(Purple),
		Observation: lipgloss.NewStyle().Foreground(TextMuted),

		StarterIndex: lipgloss.NewStyle().Foreground(Cyan).Bold(true),
		Starter:      lipgloss.NewStyle().Foreground(TextPrimary),
		Hint:         lipgloss.NewStyle().Foreground(TextMuted),

		InputBorder: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Overlay),
		CharCount:        lipgloss.NewStyle().Foreground(TextMuted),
		CharCountWarning: lipgloss.NewStyle().Foreground(Amber),
		File:             lipgloss.NewStyle().Foreground(Cyan),
		FileFailed:       lipgloss.NewStyle().Foreground(Rose).Strikethrough(true),
		StatusBar:        lipgloss.NewStyle().Foreground(TextSecondary).Background(SurfaceBright).Padding(0, 1),
		Notice:           lipgloss.NewStyle().Foreground(Amber).Bold(true),
		Error:            lipgloss.NewStyle().Foreground(Rose),
	}
}

// GlamourStyle returns the glamour standard style matching the background.
func (t *Theme) GlamourStyle() string {
	if t.IsDark {
		return "dark"
	}
	return "light"
}
