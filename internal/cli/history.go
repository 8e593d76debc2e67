// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/jeranaias/talks-tui/internal/export"
	"github.com/jeranaias/talks-tui/internal/model"
	"github.com/jeranaias/talks-tui/internal/storage"
	"github.com/jeranaias/talks-tui/internal/util"
)

const historyLongDesc string = `Browse archived conversations.

Conversations are archived when a new one is started and when talks exits.
IDs may be shortened to any unique prefix.

Examples:
  talks history list --limit 10
  talks history show 3f2a
  talks history delete 3f2a
  talks history export 3f2a --format json -o -`

const historyShortDesc string = "Browse archived conversations"

const timeLayout = "2006-01-02 15:04"

type historyCommander struct {
	root   *rootCommander
	limit  int
	raw    bool
	format string
	output string
}

func newHistoryCmd(root *rootCommander) *cobra.Command {
	cmder := &historyCommander{root: root}

	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"h"},
		Short:   historyShortDesc,
		Long:    historyLongDesc,
	}

	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List archived conversations, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.withArchive(func(a *storage.Archive) error {
				return cmder.runList(cmd.Context(), cmd.OutOrStdout(), a)
			})
		},
	}
	listCmd.Flags().IntVarP(&cmder.limit, "limit", "n", 20, "Number of conversations to list (0 for all)")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print an archived conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.withArchive(func(a *storage.Archive) error {
				return cmder.runShow(cmd.Context(), cmd.OutOrStdout(), a, args[0])
			})
		},
	}
	showCmd.Flags().BoolVar(&cmder.raw, "raw", false, "Print answers as markdown source")

	deleteCmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an archived conversation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.withArchive(func(a *storage.Archive) error {
				return cmder.runDelete(cmd.Context(), cmd.OutOrStdout(), a, args[0])
			})
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export an archived conversation as Markdown or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.withArchive(func(a *storage.Archive) error {
				return cmder.runExport(cmd.Context(), cmd.OutOrStdout(), a, args[0])
			})
		},
	}
	exportCmd.Flags().StringVarP(&cmder.format, "format", "f", "md", "Export format: "+strings.Join(export.Formats, ", "))
	exportCmd.Flags().StringVarP(&cmder.output, "output", "o", "", "Output file, - for stdout (default: a name derived from the title)")

	cmd.AddCommand(listCmd, showCmd, deleteCmd, exportCmd)
	return cmd
}

// withArchive opens the archive for the duration of fn.
func (c *historyCommander) withArchive(fn func(*storage.Archive) error) error {
	cfg := c.root.cfg
	if !cfg.Storage.Enabled {
		return errors.New("the conversation archive is disabled")
	}
	path, err := cfg.DatabaseFile()
	if err != nil {
		return err
	}
	archive, err := storage.Open(path)
	if err != nil {
		return fmt.Errorf("could not open archive %s: %w", path, err)
	}
	defer archive.Close()
	return fn(archive)
}

func (c *historyCommander) runList(ctx context.Context, w io.Writer, a *storage.Archive) error {
	convs, err := a.List(ctx, c.limit)
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		fmt.Fprintln(w, "No archived conversations.")
		return nil
	}

	for _, conv := range convs {
		fmt.Fprintf(w, "%-8s  %s  %3d turns  %s\n",
			shortID(conv.ID),
			conv.UpdatedAt.Local().Format(timeLayout),
			conv.TurnCount,
			util.TruncateWidth(conv.Title, 50),
		)
	}
	return nil
}

func (c *historyCommander) runShow(ctx context.Context, w io.Writer, a *storage.Archive, id string) error {
	conv, err := a.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("no conversation %q", id)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s\n%s  %s\n\n", conv.Title, conv.ID, conv.CreatedAt.Local().Format(timeLayout))
	if conv.Model != "" {
		fmt.Fprintf(w, "model: %s\n\n", conv.Model)
	}

	render := c.answerRenderer()
	for _, t := range conv.Turns {
		fmt.Fprintf(w, "%s:\n", t.Role.DisplayName())
		body := t.Content
		if t.Role == model.RoleAnswer {
			body = render(body)
		}
		fmt.Fprintln(w, strings.TrimRight(body, "\n"))
		for _, att := range t.Attachments {
			fmt.Fprintf(w, "[image] %s\n", att.URL)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// answerRenderer renders markdown for terminals and passes it through
// otherwise.
func (c *historyCommander) answerRenderer() func(string) string {
	plain := func(s string) string { return s }
	if c.raw || !c.root.cfg.UI.Markdown || !IsStdoutTTY() {
		return plain
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(GetTerminalWidth()-4),
	)
	if err != nil {
		return plain
	}
	return func(s string) string {
		out, err := r.Render(s)
		if err != nil {
			return s
		}
		return out
	}
}

func (c *historyCommander) runDelete(ctx context.Context, w io.Writer, a *storage.Archive, id string) error {
	conv, err := a.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("no conversation %q", id)
	}
	if err != nil {
		return err
	}
	if err := a.Delete(ctx, conv.ID); err != nil {
		return err
	}
	fmt.Fprintf(w, "Deleted %s %s\n", shortID(conv.ID), conv.Title)
	return nil
}

func (c *historyCommander) runExport(ctx context.Context, w io.Writer, a *storage.Archive, id string) error {
	exporter, err := export.ForFormat(c.format, export.DefaultOptions())
	if err != nil {
		return err
	}

	conv, err := a.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("no conversation %q", id)
	}
	if err != nil {
		return err
	}

	data, err := exporter.Export(conv)
	if err != nil {
		return err
	}

	if c.output == "-" {
		_, err := w.Write(data)
		return err
	}
	path := c.output
	if path == "" {
		path = export.Filename(conv, exporter)
	}
	if err := util.AtomicWriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(w, "Exported %s to %s\n", shortID(conv.ID), path)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
