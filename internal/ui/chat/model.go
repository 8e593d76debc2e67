// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/talks-tui/internal/config"
	"github.com/jeranaias/talks-tui/internal/draft"
	"github.com/jeranaias/talks-tui/internal/model"
	"github.com/jeranaias/talks-tui/internal/ollama"
	"github.com/jeranaias/talks-tui/internal/storage"
	"github.com/jeranaias/talks-tui/internal/ui/styles"
)

const (
	// noticeDuration is how long a transient notice stays in the status bar.
	noticeDuration = 3 * time.Second

	// pasteWindow: an Enter arriving this soon after a multi-rune burst is
	// part of pasted text, not a submit.
	pasteWindow = 15 * time.Millisecond

	inputHeight = 3
)

// copyToClipboard is replaced in tests.
var copyToClipboard = clipboard.WriteAll

// Options configures the chat view.
type Options struct {
	Config *config.Config
	Theme  *styles.Theme
	Client Streamer

	// Transcript is the conversation to show; a new one is created when nil.
	// Attach the completion notifier to it before handing it over.
	Transcript *model.Transcript

	// Archive receives finished conversations; nil disables archiving.
	Archive *storage.Archive

	// Images holds uploaded local images; a private store is used when nil.
	Images *draft.Store

	Logger *zap.Logger
}

// Model is the Bubble Tea model of the chat view.
type Model struct {
	cfg        *config.Config
	theme      *styles.Theme
	client     Streamer
	transcript *model.Transcript
	draft      *draft.Controller
	archive    *storage.Archive
	images     *draft.Store
	logger     *zap.Logger

	// conversationID names the current transcript generation in the archive.
	conversationID string

	// Components
	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	help     help.Model
	keys     KeyMap
	renderer *markdownRenderer

	// Streaming
	req       *request
	cancelMgr *cancelManager
	seq       int
	follow    bool

	// Status bar
	notice     string
	noticeSeq  int
	lastErr    string
	backendErr error

	lastBurst time.Time

	width    int
	height   int
	ready    bool
	quitting bool
}

// New creates the chat view.
func New(opts Options) Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(cfg.UI.Theme)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tr := opts.Transcript
	if tr == nil {
		tr = model.NewTranscript()
	}
	images := opts.Images
	if images == nil {
		images = draft.NewStore()
	}

	ta := textarea.New()
	ta.Placeholder = "Ask a question..."
	ta.ShowLineNumbers = false
	ta.Prompt = "> "
	ta.SetHeight(inputHeight)
	ta.CharLimit = 0
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"))
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	m := Model{
		cfg:            cfg,
		theme:          theme,
		client:         opts.Client,
		transcript:     tr,
		archive:        opts.Archive,
		images:         images,
		logger:         logger,
		conversationID: model.NewID(),
		viewport:       viewport.New(80, 20),
		input:          ta,
		spinner:        sp,
		help:           help.New(),
		keys:           DefaultKeyMap(),
		renderer:       newMarkdownRenderer(theme.GlamourStyle(), cfg.UI.Markdown),
		cancelMgr:      newCancelManager(),
		follow:         true,
	}
	m.draft = draft.NewController(draft.Options{
		Send:       m.appendExchange,
		CanSend:    m.canSend,
		Responding: tr.IsResponding,
		MaxFiles:   cfg.UI.MaxAttachments,
	})
	return m
}

// appendExchange adds the question and the empty answer that will receive
// the stream. It only touches shared state, so it is safe as a bound method
// of a Model copy.
func (m Model) appendExchange(text string, attachments []model.Attachment) error {
	if err := m.transcript.Append(model.NewQuestion(text, attachments...)); err != nil {
		return err
	}
	if err := m.transcript.Append(model.NewAnswer()); err != nil {
		return err
	}
	m.transcript.SetResponding(true)
	return nil
}

// canSend refuses while an answer streams or without a backend.
func (m Model) canSend() bool {
	return m.client != nil && !m.transcript.IsResponding()
}

// Init starts the cursor blink and the backend check.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink}
	if m.client != nil {
		cmds = append(cmds, checkBackendCmd(m.client))
	}
	return tea.Batch(cmds...)
}

// Update handles Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.follow = m.viewport.AtBottom()
		return m, cmd

	case StreamTickMsg:
		return m.handleStreamTick(msg)

	case AutoScrollTickMsg:
		return m.handleAutoScroll(msg)

	case StreamDoneMsg:
		return m.handleStreamDone(msg)

	case StreamErrorMsg:
		return m.handleStreamError(msg)

	case spinner.TickMsg:
		if m.req == nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.updateViewport()
		return m, cmd

	case BackendStatusMsg:
		m.backendErr = msg.Err
		if msg.Err != nil {
			m.logger.Warn("ollama is not reachable", zap.Error(msg.Err))
		}
		return m, nil

	case UploadDoneMsg:
		return m.handleUploadDone(msg)

	case NoticeExpiredMsg:
		if msg.Seq == m.noticeSeq {
			m.notice = ""
		}
		return m, nil

	case ArchivedMsg:
		if msg.Err != nil {
			m.logger.Error("failed to archive conversation", zap.String("conversation_id", msg.ID), zap.Error(msg.Err))
		} else if msg.Saved {
			m.logger.Debug("conversation archived", zap.String("conversation_id", msg.ID))
		}
		return m, nil

	case ConfigChangedMsg:
		if msg.Config != nil {
			m.cfg = msg.Config
			m.updateViewport()
		}
		return m, nil
	}

	// Cursor blink and anything else the textarea understands.
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.ready = true
	m.input.SetWidth(max(msg.Width-4, 10))
	m.help.Width = msg.Width
	m.layout()
	m.renderer.setWidth(m.contentWidth())
	m.updateViewport()
	return m, nil
}

// layout sizes the viewport to what the input area and status bar leave.
func (m *Model) layout() {
	reserved := inputHeight + 2 + 1 // input with its border, status bar
	if len(m.draft.Files()) > 0 {
		reserved++
	}
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-reserved, 3)
}

func (m Model) contentWidth() int {
	return max(m.width-4, 20)
}

// updateViewport re-renders the conversation into the viewport.
func (m *Model) updateViewport() {
	m.viewport.SetContent(m.renderConversation())
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.stopRequest()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.cancelMgr.active() {
			m.cancelMgr.cancel()
			m.finishRequest()
			return m, m.setNotice("Stopped")
		}
		return m, nil

	case key.Matches(msg, m.keys.NewChat):
		return m.newConversation()

	case key.Matches(msg, m.keys.Copy):
		return m.copyLastAnswer()

	case key.Matches(msg, m.keys.Starter):
		return m.sendStarter(msg)

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		m.follow = m.viewport.AtBottom()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		m.follow = m.viewport.AtBottom()
		return m, nil
	}

	if msg.Type == tea.KeyRunes && len(msg.Runes) > 1 {
		m.lastBurst = time.Now()
	}

	ev := draft.KeyEvent{
		Enter:     msg.Type == tea.KeyEnter,
		Alt:       msg.Alt,
		Composing: time.Since(m.lastBurst) < pasteWindow,
	}
	if draft.ShouldSubmit(ev) {
		return m.submitDraft()
	}
	if ev.Enter && ev.Composing {
		m.input.InsertString("\n")
		m.draft.SetText(m.input.Value())
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.draft.SetText(m.input.Value())
	return m, cmd
}

// =============================================================================
// SUBMIT
// =============================================================================

// sendStarter sends the starter picked with Alt+digit. Starters only apply
// on the welcome screen, and plain digits always go to the draft.
func (m Model) sendStarter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.transcript.IsEmpty() || len(msg.Runes) != 1 {
		return m, nil
	}
	idx := int(msg.Runes[0] - '1')
	if idx < 0 || idx >= len(m.starters()) {
		return m, nil
	}
	return m.submit(m.starters()[idx])
}

// submitDraft sends the textarea content, or runs it as a command.
func (m Model) submitDraft() (tea.Model, tea.Cmd) {
	text := draft.TrimEnter(m.input.Value())
	if name, arg, ok := parseCommand(text); ok {
		m.input.Reset()
		m.draft.Clear()
		return m.runCommand(name, arg)
	}
	m.draft.SetText(text)
	return m.submit("")
}

// submit hands the draft (or override) to the controller and starts the
// request it produced.
func (m Model) submit(override string) (tea.Model, tea.Cmd) {
	err := m.draft.Submit(override)
	if err != nil {
		var verr *model.ValidationError
		switch {
		case errors.As(err, &verr):
			return m, m.setNotice(verr.Message)
		case errors.Is(err, draft.ErrCannotSend):
			if m.client == nil {
				return m, m.setNotice("No model backend configured")
			}
			return m, m.setNotice("Wait for the answer to finish")
		default:
			m.logger.Error("submit failed", zap.Error(err))
			return m, nil
		}
	}

	if m.draft.Text() == "" {
		m.input.Reset()
	}
	m.lastErr = ""
	m.layout()
	return m, m.startRequest()
}

// startRequest streams an answer into the open answer turn.
func (m *Model) startRequest() tea.Cmd {
	answerID := m.transcript.StreamingID()
	if answerID == "" {
		return nil
	}

	m.seq++
	req := &request{
		answerID:   answerID,
		generation: m.transcript.Generation(),
		seq:        m.seq,
		buffer:     NewStreamingBuffer(),
		started:    time.Now(),
	}
	m.req = req
	m.follow = true

	messages := ollama.FromTranscript(m.transcript.Turns(), m.cfg.Local.SystemPrompt, m.resolveImage)
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelMgr.set(cancel)

	m.updateViewport()
	m.viewport.GotoBottom()

	return tea.Batch(
		streamCmd(ctx, m.client, messages, req),
		streamTickCmd(req.seq),
		autoScrollCmd(req.seq),
		m.spinner.Tick,
	)
}

func (m Model) resolveImage(uploadID string) ([]byte, bool) {
	img, ok := m.images.Get(uploadID)
	return img.Data, ok
}

// =============================================================================
// STREAM EVENTS
// =============================================================================

func (m Model) handleStreamTick(msg StreamTickMsg) (tea.Model, tea.Cmd) {
	if m.req == nil || msg.Seq != m.req.seq {
		return m, nil
	}
	if deltas, ok := m.req.buffer.Flush(); ok {
		m.apply(deltas)
		m.updateViewport()
	}
	return m, streamTickCmd(msg.Seq)
}

func (m Model) handleAutoScroll(msg AutoScrollTickMsg) (tea.Model, tea.Cmd) {
	if m.req == nil || msg.Seq != m.req.seq {
		return m, nil
	}
	if m.follow {
		m.viewport.GotoBottom()
	}
	return m, autoScrollCmd(msg.Seq)
}

func (m Model) handleStreamDone(msg StreamDoneMsg) (tea.Model, tea.Cmd) {
	if !m.current(msg.AnswerID, msg.Generation) {
		return m, nil
	}
	if msg.Final.Done {
		m.logger.Debug("answer complete",
			zap.String("answer_id", msg.AnswerID),
			zap.Int("completion_tokens", msg.Final.CompletionTokens),
			zap.Float64("tokens_per_second", msg.Final.TokensPerSecond()),
			zap.Duration("elapsed", time.Since(m.req.started)))
	}
	m.finishRequest()
	return m, nil
}

func (m Model) handleStreamError(msg StreamErrorMsg) (tea.Model, tea.Cmd) {
	if !m.current(msg.AnswerID, msg.Generation) {
		return m, nil
	}
	m.logger.Error("answer stream failed", zap.String("answer_id", msg.AnswerID), zap.Error(msg.Err))
	m.lastErr = DescribeError(msg.Err)
	m.finishRequest()
	return m, nil
}

// current reports whether an event belongs to the request in flight.
func (m Model) current(answerID string, generation uint64) bool {
	return m.req != nil &&
		m.req.answerID == answerID &&
		m.req.generation == generation &&
		m.transcript.Generation() == generation
}

// apply merges deltas into the open answer.
func (m *Model) apply(deltas []model.Delta) {
	for _, d := range deltas {
		if err := m.transcript.UpdateLastAnswer(d); err != nil {
			m.logger.Warn("dropped stream fragment", zap.Error(err))
		}
	}
}

// finishRequest drains the buffer and closes the answer. Closing the answer
// is the falling edge the completion notifier listens for.
func (m *Model) finishRequest() {
	if m.req == nil {
		return
	}
	if deltas, ok := m.req.buffer.ForceFlush(); ok {
		m.apply(deltas)
	}
	m.transcript.SetResponding(false)
	m.stopRequest()
	m.updateViewport()
	if m.follow {
		m.viewport.GotoBottom()
	}
}

// stopRequest cancels the request and retires its ticks without touching
// the transcript.
func (m *Model) stopRequest() {
	m.cancelMgr.cancel()
	if m.req != nil {
		m.req.buffer.Reset()
	}
	m.req = nil
	m.seq++
}

// =============================================================================
// CONVERSATION ACTIONS
// =============================================================================

// newConversation archives the current transcript and starts over.
func (m Model) newConversation() (tea.Model, tea.Cmd) {
	archive := m.archiveCmd()
	m.stopRequest()
	m.transcript.Reset()
	m.conversationID = model.NewID()
	m.input.Reset()
	m.draft.Clear()
	m.draft.ClearFiles()
	m.lastErr = ""
	m.follow = true
	m.layout()
	m.updateViewport()
	return m, tea.Batch(archive, m.setNotice("New conversation"))
}

// archiveCmd snapshots the transcript now and saves it in the background.
func (m Model) archiveCmd() tea.Cmd {
	if m.archive == nil || m.transcript.IsEmpty() {
		return nil
	}
	conv := storage.FromTranscript(m.conversationID, m.transcript, m.modelName())
	archive := m.archive
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		saved, err := archive.Save(ctx, conv)
		return ArchivedMsg{ID: conv.ID, Saved: saved, Err: err}
	}
}

// Shutdown stops any request and archives the conversation. Call it after
// the program exits; the answer being streamed is archived as received.
func (m Model) Shutdown(ctx context.Context) error {
	m.cancelMgr.cancel()
	if m.archive == nil || m.transcript.IsEmpty() {
		return nil
	}
	_, err := m.archive.Save(ctx, storage.FromTranscript(m.conversationID, m.transcript, m.modelName()))
	return err
}

func (m Model) copyLastAnswer() (tea.Model, tea.Cmd) {
	answer, ok := m.transcript.LastAnswer()
	if !ok || answer.Content == "" {
		return m, m.setNotice("No answer to copy")
	}
	if err := copyToClipboard(answer.Content); err != nil {
		m.logger.Warn("clipboard unavailable", zap.Error(err))
		return m, m.setNotice("Failed to copy")
	}
	return m, m.setNotice(fmt.Sprintf("Copied %d chars", len([]rune(answer.Content))))
}

func (m Model) handleUploadDone(msg UploadDoneMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.draft.MarkFailed(msg.FileID)
		m.logger.Warn("image upload failed", zap.String("file_id", msg.FileID), zap.Error(msg.Err))
		return m, m.setNotice(msg.Err.Error())
	}
	m.draft.MarkUploaded(msg.FileID, msg.UploadID)
	return m, nil
}

// setNotice shows a transient notice and schedules its removal.
func (m *Model) setNotice(text string) tea.Cmd {
	m.noticeSeq++
	m.notice = text
	seq := m.noticeSeq
	return tea.Tick(noticeDuration, func(time.Time) tea.Msg {
		return NoticeExpiredMsg{Seq: seq}
	})
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Transcript returns the conversation shown by the view.
func (m Model) Transcript() *model.Transcript { return m.transcript }

// ConversationID returns the archive id of the current conversation.
func (m Model) ConversationID() string { return m.conversationID }

// Notice returns the transient status notice, if any.
func (m Model) Notice() string { return m.notice }

// IsStreaming reports whether a request is in flight.
func (m Model) IsStreaming() bool { return m.req != nil }

func (m Model) starters() []string { return m.cfg.UI.Starters }

func (m Model) modelName() string {
	if m.client != nil {
		return m.client.Model()
	}
	return m.cfg.Local.Model
}

// DescribeError turns backend failures into a one-line status message.
func DescribeError(err error) string {
	switch {
	case ollama.IsNotRunning(err):
		return "Ollama is not running"
	case ollama.IsModelNotFound(err):
		return "Model not found; run ollama pull"
	case errors.Is(err, ollama.ErrTimeout):
		return "Ollama timed out"
	default:
		return err.Error()
	}
}
