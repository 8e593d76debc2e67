// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/talks-tui/internal/config"
	"github.com/jeranaias/talks-tui/internal/draft"
	"github.com/jeranaias/talks-tui/internal/logging"
	"github.com/jeranaias/talks-tui/internal/model"
	"github.com/jeranaias/talks-tui/internal/ollama"
	"github.com/jeranaias/talks-tui/internal/storage"
	"github.com/jeranaias/talks-tui/internal/ui/chat"
	"github.com/jeranaias/talks-tui/internal/ui/styles"
)

const chatLongDesc string = `Chat in line mode.

Questions are read with line editing and history; answers stream to
stdout as plain text. Completed answers are sent to the webhook and the
conversation is archived, exactly as in the full screen chat.

Commands:
  /attach <path|url>  attach an image to the next question
  /new                archive this conversation and start a new one
  /help               show this list
  /quit               leave (Ctrl+D works too)

Ctrl+C stops the answer being streamed.`

const chatShortDesc string = "Chat in line mode without the full screen UI"

const chatHelp = `  /attach <path|url>  attach an image to the next question
  /new                start a new conversation
  /quit               leave`

type chatCommander struct {
	root *rootCommander
}

func newChatCmd(root *rootCommander) *cobra.Command {
	cmder := &chatCommander{root: root}

	return &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}
}

func (c *chatCommander) run(ctx context.Context, cmd *cobra.Command) error {
	cfg := c.root.cfg
	logger := logging.NewStderr(cfg.Log.Debug)
	defer func() { _ = logger.Sync() }()

	svc, err := newServices(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.close()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyPath, err := cfg.HistoryFile()
	if err != nil {
		return err
	}
	if f, err := os.Open(historyPath); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer saveHistory(line, historyPath, logger)

	lc := newLineChat(cfg, svc.client, svc.transcript, svc.archive, svc.images, logger, cmd.OutOrStdout())
	return lc.run(ctx, line)
}

// saveHistory writes the input history with owner-only permissions.
func saveHistory(line *liner.State, path string, logger *zap.Logger) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		logger.Debug("save history", zap.Error(err))
		return
	}
	defer f.Close()
	if _, err := line.WriteHistory(f); err != nil {
		logger.Debug("save history", zap.Error(err))
	}
}

// =============================================================================
// LINE MODE
// =============================================================================

// prompter reads one line of input. *liner.State implements it.
type prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// lineChat is the line mode loop. It drives the transcript, the draft
// controller and therefore the notifier the same way the full screen chat
// does, from a single goroutine.
type lineChat struct {
	cfg        *config.Config
	client     chat.Streamer
	transcript *model.Transcript
	draft      *draft.Controller
	archive    *storage.Archive
	images     *draft.Store
	logger     *zap.Logger
	out        io.Writer
	theme      *styles.Theme

	// interrupt scopes one answer; Ctrl+C cancels it.
	interrupt func(context.Context) (context.Context, context.CancelFunc)

	conversationID string
}

func newLineChat(cfg *config.Config, client chat.Streamer, tr *model.Transcript, archive *storage.Archive, images *draft.Store, logger *zap.Logger, out io.Writer) *lineChat {
	if images == nil {
		images = draft.NewStore()
	}
	lc := &lineChat{
		cfg:            cfg,
		client:         client,
		transcript:     tr,
		archive:        archive,
		images:         images,
		logger:         logger,
		out:            out,
		theme:          styles.NewTheme(cfg.UI.Theme),
		conversationID: uuid.NewString(),
		interrupt: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		},
	}
	lc.draft = draft.NewController(draft.Options{
		Send:       lc.appendExchange,
		CanSend:    func() bool { return lc.client != nil && !tr.IsResponding() },
		Responding: tr.IsResponding,
		MaxFiles:   cfg.UI.MaxAttachments,
	})
	return lc
}

// run reads questions until /quit, EOF or Ctrl+C at the prompt, then
// archives the conversation.
func (l *lineChat) run(ctx context.Context, in prompter) error {
	l.printWelcome()

	for {
		text, err := in.Prompt("> ")
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(l.out)
			break
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		in.AppendHistory(text)

		if quit := l.handle(ctx, text); quit {
			break
		}
	}

	l.archiveCurrent(ctx)
	return nil
}

// handle runs a command or sends text as a question. It reports whether
// the user asked to leave.
func (l *lineChat) handle(ctx context.Context, text string) bool {
	if name, arg, ok := parseLineCommand(text); ok {
		switch name {
		case "quit", "exit":
			return true
		case "new":
			l.newConversation(ctx)
		case "attach":
			l.attach(ctx, arg)
		case "help":
			fmt.Fprintln(l.out, chatHelp)
		}
		return false
	}

	l.draft.SetText(text)
	if err := l.draft.Submit(""); err != nil {
		var verr *model.ValidationError
		switch {
		case errors.As(err, &verr):
			fmt.Fprintln(l.out, styles.RenderWarning(verr.Message))
		case errors.Is(err, draft.ErrCannotSend):
			fmt.Fprintln(l.out, styles.RenderWarning("No model backend configured"))
		default:
			fmt.Fprintln(l.out, styles.RenderError(err.Error()))
		}
		return false
	}
	l.stream(ctx)
	return false
}

// parseLineCommand recognises "/name arg" for the line mode commands.
func parseLineCommand(text string) (name, arg string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	name, arg, _ = strings.Cut(text[1:], " ")
	name = strings.ToLower(name)
	switch name {
	case "quit", "exit", "new", "attach", "help":
		return name, strings.TrimSpace(arg), true
	}
	return "", "", false
}

func (l *lineChat) appendExchange(text string, attachments []model.Attachment) error {
	if err := l.transcript.Append(model.NewQuestion(text, attachments...)); err != nil {
		return err
	}
	if err := l.transcript.Append(model.NewAnswer()); err != nil {
		return err
	}
	l.transcript.SetResponding(true)
	return nil
}

// stream requests the answer to the open exchange and prints its text as
// it arrives. The answer is finalized however the stream ends, which is
// what triggers the notification.
func (l *lineChat) stream(ctx context.Context) {
	messages := ollama.FromTranscript(l.transcript.Turns(), l.cfg.Local.SystemPrompt, l.resolveImage)

	sctx, cancel := l.interrupt(ctx)
	defer cancel()

	fmt.Fprintln(l.out, l.theme.RoleLabel.Render(model.RoleAnswer.DisplayName()))

	printed := 0
	var applyErr error
	err := l.client.ChatStream(sctx, messages, func(chunk ollama.StreamChunk) {
		if applyErr != nil {
			return
		}
		for _, d := range ollama.ToDelta(chunk) {
			if err := l.transcript.UpdateLastAnswer(d); err != nil {
				applyErr = err
				return
			}
		}
		if answer, ok := l.transcript.LastAnswer(); ok && len(answer.Content) > printed {
			_, _ = io.WriteString(l.out, answer.Content[printed:])
			printed = len(answer.Content)
		}
	})
	l.transcript.SetResponding(false)
	fmt.Fprintln(l.out)

	switch {
	case applyErr != nil:
		l.logger.Warn("dropped stream chunk", zap.Error(applyErr))
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(l.out, l.theme.Hint.Render("Stopped"))
	case err != nil:
		l.logger.Debug("stream failed", zap.Error(err))
		fmt.Fprintln(l.out, styles.RenderError(chat.DescribeError(err)))
	}
}

func (l *lineChat) resolveImage(uploadID string) ([]byte, bool) {
	img, ok := l.images.Get(uploadID)
	return img.Data, ok
}

// attach adds an image to the next question. Local files are read right
// away.
func (l *lineChat) attach(ctx context.Context, arg string) {
	f, err := draft.ParseAttachment(arg)
	if err != nil {
		fmt.Fprintln(l.out, styles.RenderWarning("Usage: /attach <path|url>"))
		return
	}
	f, err = l.draft.AddFile(f)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintln(l.out, styles.RenderWarning(verr.Message))
			return
		}
		fmt.Fprintln(l.out, styles.RenderError(err.Error()))
		return
	}

	if f.TransferMethod == draft.TransferLocal {
		img, err := l.images.Upload(ctx, draft.LocalPath(f.URL))
		if err != nil {
			l.draft.MarkFailed(f.ID)
			fmt.Fprintln(l.out, styles.RenderError(err.Error()))
			return
		}
		l.draft.MarkUploaded(f.ID, img.ID)
	}
	fmt.Fprintln(l.out, styles.RenderSuccess("Attached "+f.Name))
}

// newConversation archives the transcript and starts over.
func (l *lineChat) newConversation(ctx context.Context) {
	l.archiveCurrent(ctx)
	l.transcript.Reset()
	l.draft.Clear()
	l.draft.ClearFiles()
	l.conversationID = uuid.NewString()
	fmt.Fprintln(l.out, l.theme.Hint.Render("New conversation"))
}

func (l *lineChat) archiveCurrent(ctx context.Context) {
	if l.archive == nil || l.transcript.IsEmpty() {
		return
	}
	modelName := ""
	if l.client != nil {
		modelName = l.client.Model()
	}
	conv := storage.FromTranscript(l.conversationID, l.transcript, modelName)
	if _, err := l.archive.Save(ctx, conv); err != nil {
		l.logger.Warn("archive conversation", zap.String("id", l.conversationID), zap.Error(err))
	}
}

func (l *lineChat) printWelcome() {
	ui := l.cfg.UI
	fmt.Fprintln(l.out, l.theme.Title.Render(ui.Title))
	if ui.Subtitle != "" {
		fmt.Fprintln(l.out, l.theme.Subtitle.Render(ui.Subtitle))
	}
	fmt.Fprintln(l.out, l.theme.Hint.Render("Type a question, /help for commands."))
	fmt.Fprintln(l.out)
}
