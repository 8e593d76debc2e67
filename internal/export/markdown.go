// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/talks-tui/internal/model"
	"github.com/jeranaias/talks-tui/internal/storage"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter writes a conversation as a Markdown document. Answers are
// already Markdown and are copied through.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a conversation to Markdown.
func (e *MarkdownExporter) Export(conv *storage.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}
	if len(conv.Turns) == 0 {
		return nil, ErrEmptyConversation
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(conv.Title))
		if conv.Model != "" {
			fmt.Fprintf(&sb, "model: %s\n", escapeYAML(conv.Model))
		}
		fmt.Fprintf(&sb, "date: %s\n", conv.CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(&sb, "updated: %s\n", conv.UpdatedAt.Format(time.RFC3339))
		fmt.Fprintf(&sb, "turns: %d\n", len(conv.Turns))
		fmt.Fprintf(&sb, "exported: %s\n", e.options.now().Format(time.RFC3339))
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(conv.Title))

	for i, t := range conv.Turns {
		if i > 0 {
			sb.WriteString("---\n\n")
		}
		e.writeTurn(&sb, t)
	}

	return []byte(sb.String()), nil
}

// FileExtension returns ".md".
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

func (e *MarkdownExporter) writeTurn(sb *strings.Builder, t model.Turn) {
	if e.options.IncludeTimestamps && !t.CreatedAt.IsZero() {
		fmt.Fprintf(sb, "### %s <sub>%s</sub>\n\n", t.Role.DisplayName(), t.CreatedAt.Format("15:04:05"))
	} else {
		fmt.Fprintf(sb, "### %s\n\n", t.Role.DisplayName())
	}

	for _, th := range t.Thoughts {
		writeThought(sb, th)
	}
	if len(t.Thoughts) > 0 {
		sb.WriteString("\n")
	}

	content := strings.TrimSpace(t.Content)
	if content == "" && t.IsAnswer() {
		content = "*(no answer)*"
	}
	sb.WriteString(content)
	sb.WriteString("\n\n")

	for _, a := range t.Attachments {
		fmt.Fprintf(sb, "![%s](%s)\n", a.Kind, a.URL)
	}
	if len(t.Attachments) > 0 {
		sb.WriteString("\n")
	}
}

// writeThought renders a reasoning step as a quoted line.
func writeThought(sb *strings.Builder, th model.Thought) {
	if th.Tool != nil {
		fmt.Fprintf(sb, "> **Tool** `%s`", th.Tool.Name)
		if th.Tool.Input != "" {
			fmt.Fprintf(sb, " `%s`", strings.ReplaceAll(th.Tool.Input, "`", "'"))
		}
		sb.WriteString("\n")
		if th.Tool.Observation != "" {
			fmt.Fprintf(sb, "> -> %s\n", quoteLines(th.Tool.Observation))
		}
	}
	if th.Text != "" {
		fmt.Fprintf(sb, "> %s\n", quoteLines(th.Text))
	}
	sb.WriteString(">\n")
}

func quoteLines(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", "\n> ")
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes characters that would break a heading.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer(
		"#", "\\#",
		"*", "\\*",
		"_", "\\_",
		"[", "\\[",
		"]", "\\]",
	)
	return r.Replace(s)
}

// escapeYAML quotes values that YAML would misread.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}
