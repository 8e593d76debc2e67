// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/talks-tui/internal/draft"
	"github.com/jeranaias/talks-tui/internal/model"
)

// uploadTimeout bounds reading a local image.
const uploadTimeout = 30 * time.Second

// commands maps slash command names to their handlers.
var commands = map[string]func(m Model, arg string) (tea.Model, tea.Cmd){
	"attach": Model.cmdAttach,
	"detach": Model.cmdDetach,
	"new":    Model.cmdNew,
	"clear":  Model.cmdClear,
}

// parseCommand recognises "/name arg". Unknown names are not commands, so
// a question that merely starts with a slash is sent as typed.
func parseCommand(text string) (name, arg string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	name, arg, _ = strings.Cut(text[1:], " ")
	name = strings.ToLower(name)
	if _, known := commands[name]; !known {
		return "", "", false
	}
	return name, strings.TrimSpace(arg), true
}

func (m Model) runCommand(name, arg string) (tea.Model, tea.Cmd) {
	return commands[name](m, arg)
}

// cmdAttach adds an image to the draft. Local files are read in the
// background and stay pending until the upload finishes.
func (m Model) cmdAttach(arg string) (tea.Model, tea.Cmd) {
	f, err := draft.ParseAttachment(arg)
	if err != nil {
		return m, m.setNotice("Usage: /attach <path|url>")
	}
	f, err = m.draft.AddFile(f)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			return m, m.setNotice(verr.Message)
		}
		return m, m.setNotice(err.Error())
	}
	m.layout()

	if f.TransferMethod != draft.TransferLocal {
		return m, m.setNotice("Attached " + f.Name)
	}
	return m, uploadCmd(m.images, f)
}

// uploadCmd reads a local image into the store.
func uploadCmd(store *draft.Store, f draft.File) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
		defer cancel()
		img, err := store.Upload(ctx, draft.LocalPath(f.URL))
		if err != nil {
			return UploadDoneMsg{FileID: f.ID, Err: err}
		}
		return UploadDoneMsg{FileID: f.ID, UploadID: img.ID}
	}
}

// cmdDetach removes the n-th attachment (1-based, as listed above the
// input).
func (m Model) cmdDetach(arg string) (tea.Model, tea.Cmd) {
	files := m.draft.Files()
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(files) {
		return m, m.setNotice(fmt.Sprintf("Usage: /detach <1-%d>", max(len(files), 1)))
	}
	m.draft.RemoveFile(files[n-1].ID)
	m.layout()
	return m, m.setNotice("Removed " + files[n-1].Name)
}

func (m Model) cmdNew(string) (tea.Model, tea.Cmd) {
	return m.newConversation()
}

func (m Model) cmdClear(string) (tea.Model, tea.Cmd) {
	m.input.Reset()
	m.draft.Clear()
	m.draft.ClearFiles()
	m.layout()
	return m, nil
}
