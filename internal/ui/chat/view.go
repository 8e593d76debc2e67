// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/talks-tui/internal/draft"
	"github.com/jeranaias/talks-tui/internal/model"
	"github.com/jeranaias/talks-tui/internal/ui/styles"
	"github.com/jeranaias/talks-tui/internal/util"
)

// =============================================================================
// MARKDOWN
// =============================================================================

// markdownRenderer renders finished answers through glamour and caches the
// result per turn. Answers still streaming are drawn as plain text; glamour
// is too slow to run at 30fps on a growing document.
type markdownRenderer struct {
	mu      sync.Mutex
	style   string
	enabled bool
	width   int
	tr      *glamour.TermRenderer
	cache   map[string]string
}

func newMarkdownRenderer(style string, enabled bool) *markdownRenderer {
	return &markdownRenderer{style: style, enabled: enabled, width: 76, cache: make(map[string]string)}
}

// setWidth drops the renderer and cache when the wrap width changes.
func (r *markdownRenderer) setWidth(width int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if width == r.width {
		return
	}
	r.width = width
	r.tr = nil
	r.cache = make(map[string]string)
}

// render returns the markdown rendering of a finished turn, falling back to
// wrapped plain text.
func (r *markdownRenderer) render(t model.Turn) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.enabled {
		return wrap(t.Content, r.width)
	}
	key := fmt.Sprintf("%s:%d", t.ID, len(t.Content))
	if out, ok := r.cache[key]; ok {
		return out
	}
	if r.tr == nil {
		tr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(r.style),
			glamour.WithWordWrap(r.width),
		)
		if err != nil {
			return wrap(t.Content, r.width)
		}
		r.tr = tr
	}
	out, err := r.tr.Render(t.Content)
	if err != nil {
		return wrap(t.Content, r.width)
	}
	out = strings.Trim(out, "\n")
	r.cache[key] = out
	return out
}

func wrap(s string, width int) string {
	return lipgloss.NewStyle().Width(width).Render(s)
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the chat interface.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	parts := []string{m.viewport.View()}
	if files := m.renderFiles(); files != "" {
		parts = append(parts, files)
	}
	parts = append(parts,
		m.theme.InputBorder.Width(max(m.width-2, 10)).Render(m.input.View()),
		m.renderStatusBar(),
	)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderConversation draws the welcome screen or the transcript.
func (m Model) renderConversation() string {
	if m.transcript.IsEmpty() {
		return m.renderWelcome()
	}

	turns := m.transcript.Turns()
	responding := m.transcript.IsResponding()
	streamingID := m.transcript.StreamingID()

	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch t.Role {
		case model.RoleQuestion:
			b.WriteString(m.renderQuestion(t))
		case model.RoleAnswer:
			last := i == len(turns)-1
			b.WriteString(m.renderAnswer(t, last && responding, t.ID == streamingID))
		}
	}
	if m.lastErr != "" {
		b.WriteString("\n\n")
		b.WriteString(styles.RenderError(m.lastErr))
	}
	return b.String()
}

// renderWelcome shows the title, subtitle and numbered starters.
func (m Model) renderWelcome() string {
	width := m.contentWidth()
	ui := m.cfg.UI

	lines := []string{
		"",
		m.theme.Title.Render(ui.Title),
	}
	if ui.Subtitle != "" {
		lines = append(lines, m.theme.Subtitle.Render(ui.Subtitle))
	}
	if starters := m.starters(); len(starters) > 0 {
		lines = append(lines, "", m.theme.Hint.Render("Try asking:"))
		for i, s := range starters {
			if i >= 9 {
				break
			}
			idx := m.theme.StarterIndex.Render(fmt.Sprintf(" %d ", i+1))
			lines = append(lines, idx+" "+m.theme.Starter.Render(util.TruncateWidth(s, width-5)))
		}
		lines = append(lines, "", m.theme.Hint.Render(fmt.Sprintf("Press Alt+1..%d to send a starter, or type your own question.", min(len(starters), 9))))
	}
	return lipgloss.NewStyle().Width(m.width).Align(lipgloss.Center).Render(strings.Join(lines, "\n"))
}

// renderQuestion draws a question as a right-aligned bubble.
func (m Model) renderQuestion(t model.Turn) string {
	bubbleWidth := max(min(m.width*3/4, m.width-4), 20)

	body := t.Content
	for _, a := range t.Attachments {
		body += "\n" + attachmentLine(a)
	}
	bubble := m.theme.Question.MaxWidth(bubbleWidth).Render(
		lipgloss.NewStyle().Width(min(util.StringWidth(longestLine(body)), bubbleWidth-2)).Render(body),
	)
	label := m.theme.RoleLabel.Render(t.Role.DisplayName())
	return lipgloss.PlaceHorizontal(m.width, lipgloss.Right, lipgloss.JoinVertical(lipgloss.Right, label, bubble))
}

// renderAnswer draws an answer. responding marks the answer currently being
// streamed; open is true for the transcript's open answer.
func (m Model) renderAnswer(t model.Turn, responding, open bool) string {
	var lines []string
	lines = append(lines, m.theme.RoleLabel.Render(t.Role.DisplayName()))

	for _, th := range t.Thoughts {
		lines = append(lines, m.renderThought(th, responding))
	}
	for _, img := range t.Images(model.OwnerAssistant) {
		lines = append(lines, m.theme.Attachment.Render("[image] "+img))
	}

	switch {
	case t.Content == "" && responding:
		lines = append(lines, m.spinner.View()+m.theme.Pending.Render("Thinking..."))
	case t.Content == "":
		if !open {
			lines = append(lines, m.theme.Pending.Render("(no answer)"))
		}
	case open:
		lines = append(lines, wrap(t.Content, m.contentWidth()))
		if responding {
			lines = append(lines, m.spinner.View())
		}
	default:
		lines = append(lines, m.renderer.render(t))
	}

	return m.theme.Answer.Render(strings.Join(lines, "\n"))
}

// renderThought draws one reasoning step with its finished marker.
func (m Model) renderThought(th model.Thought, responding bool) string {
	marker := m.theme.StepDone.Render(styles.StatusIndicators.Success)
	if !th.Finished(responding) {
		marker = m.theme.StepRunning.Render("[..]")
	}

	var b strings.Builder
	b.WriteString(marker)
	if th.Tool != nil {
		b.WriteString(" " + m.theme.StepRunning.Bold(true).Render(th.Tool.Name))
		if th.Tool.Input != "" {
			b.WriteString(" " + m.theme.Observation.Render(util.TruncateWidth(th.Tool.Input, m.contentWidth()/2)))
		}
	}
	if th.Text != "" {
		b.WriteString("\n   " + m.theme.Thought.Render(util.TruncateWidth(util.FirstLine(th.Text), m.contentWidth()-4)))
	}
	if th.Tool != nil && th.Tool.Observation != "" {
		b.WriteString("\n   " + m.theme.Observation.Render("-> "+util.TruncateWidth(util.FirstLine(th.Tool.Observation), m.contentWidth()-7)))
	}
	for _, a := range th.Attachments {
		b.WriteString("\n   " + attachmentLine(a))
	}
	return b.String()
}

// renderFiles lists the draft attachments above the input.
func (m Model) renderFiles() string {
	files := m.draft.Files()
	if len(files) == 0 {
		return ""
	}
	parts := make([]string, 0, len(files))
	for i, f := range files {
		label := fmt.Sprintf("[%d] %s", i+1, f.Name)
		switch {
		case f.Failed():
			parts = append(parts, m.theme.FileFailed.Render(label))
		case f.Uploading():
			parts = append(parts, m.theme.Hint.Render(label+" (uploading)"))
		default:
			parts = append(parts, m.theme.File.Render(label))
		}
	}
	return " " + strings.Join(parts, "  ")
}

// renderStatusBar shows the model, notices and the character counter.
func (m Model) renderStatusBar() string {
	left := m.modelName()
	if m.req != nil {
		left += " " + m.spinner.View() + "answering"
	} else if m.backendErr != nil {
		left += " " + m.theme.Error.Render(styles.StatusIndicators.Error+" offline")
	}

	middle := m.help.ShortHelpView(m.keys.ShortHelp())
	if m.notice != "" {
		middle = m.theme.Notice.Render(m.notice)
	}

	count := m.draft.CharCount()
	right := m.theme.CharCount.Render(fmt.Sprintf("%d chars", count))
	if count > 2000 {
		right = m.theme.CharCountWarning.Render(fmt.Sprintf("%d chars", count))
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(middle) - lipgloss.Width(right) - 6
	if gap < 1 {
		middle = ""
		gap = max(m.width-lipgloss.Width(left)-lipgloss.Width(right)-4, 1)
	}
	bar := left + "  " + middle + strings.Repeat(" ", gap) + right
	return m.theme.StatusBar.Width(m.width).MaxWidth(m.width).Render(bar)
}

func attachmentLine(a model.Attachment) string {
	name := a.URL
	if a.TransferMethod == draft.TransferLocal {
		name = draft.LocalPath(a.URL)
	}
	return lipgloss.NewStyle().Underline(true).Render("[image] " + name)
}

func longestLine(s string) string {
	longest := ""
	for _, line := range strings.Split(s, "\n") {
		if util.StringWidth(line) > util.StringWidth(longest) {
			longest = line
		}
	}
	return longest
}
