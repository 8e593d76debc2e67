// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package draft

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/talks-tui/internal/model"
)

type sent struct {
	text        string
	attachments []model.Attachment
}

func newTestController(responding *bool) (*Controller, *[]sent) {
	var calls []sent
	c := NewController(Options{
		Send: func(text string, atts []model.Attachment) error {
			calls = append(calls, sent{text, atts})
			if responding != nil {
				*responding = true
			}
			return nil
		},
		Responding: func() bool { return responding != nil && *responding },
		MaxFiles:   3,
	})
	return c, &calls
}

func TestSubmit_RejectsBlank(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t "} {
		c, calls := newTestController(nil)
		c.SetText(text)
		f, err := c.AddFile(File{URL: "https://example.com/a.png", TransferMethod: TransferRemote})
		require.NoError(t, err)

		err = c.Submit("")
		require.Error(t, err)
		assert.True(t, model.IsValidationError(err))
		assert.ErrorIs(t, err, model.ErrEmptyInput)
		assert.Empty(t, *calls)
		assert.Equal(t, text, c.Text())
		require.Len(t, c.Files(), 1)
		assert.Equal(t, f.ID, c.Files()[0].ID)
	}
}

func TestSubmit_SendsAndClears(t *testing.T) {
	responding := false
	c, calls := newTestController(&responding)
	c.SetText("What courses do you offer?")
	_, err := c.AddFile(File{URL: "https://example.com/a.png", TransferMethod: TransferRemote})
	require.NoError(t, err)

	require.NoError(t, c.Submit(""))
	require.Len(t, *calls, 1)
	assert.Equal(t, "What courses do you offer?", (*calls)[0].text)
	require.Len(t, (*calls)[0].attachments, 1)
	assert.Equal(t, model.OwnerUser, (*calls)[0].attachments[0].BelongsTo)
	assert.Equal(t, "", c.Text())
	assert.Empty(t, c.Files())
}

func TestSubmit_KeepsTextWhileResponding(t *testing.T) {
	responding := true
	c, _ := newTestController(&responding)
	c.SetText("follow up")
	require.NoError(t, c.Submit(""))
	assert.Equal(t, "follow up", c.Text())
}

func TestSubmit_OverrideKeepsDraft(t *testing.T) {
	responding := false
	c, calls := newTestController(&responding)
	c.SetText("half typed")
	require.NoError(t, c.Submit("Jakie kursy oferujecie?"))
	assert.Equal(t, "Jakie kursy oferujecie?", (*calls)[0].text)
	assert.Equal(t, "half typed", c.Text())
}

func TestSubmit_FiltersFailedUploads(t *testing.T) {
	c, calls := newTestController(nil)
	ok, _ := c.AddFile(File{URL: "file:///tmp/ok.png", TransferMethod: TransferLocal})
	bad, _ := c.AddFile(File{URL: "file:///tmp/bad.png", TransferMethod: TransferLocal})
	c.MarkUploaded(ok.ID, "upload-1")
	c.MarkFailed(bad.ID)

	c.SetText("look")
	require.NoError(t, c.Submit(""))
	atts := (*calls)[0].attachments
	require.Len(t, atts, 1)
	assert.Equal(t, "upload-1", atts[0].UploadFileID)
	assert.Empty(t, c.Files())
}

func TestSubmit_PendingUploadKeepsState(t *testing.T) {
	c, calls := newTestController(nil)
	_, err := c.AddFile(File{URL: "file:///tmp/slow.png", TransferMethod: TransferLocal})
	require.NoError(t, err)
	c.SetText("look at this")

	require.NoError(t, c.Submit(""))
	require.Len(t, *calls, 1)
	assert.Len(t, c.Files(), 1)
	assert.Equal(t, "look at this", c.Text())
}

func TestSubmit_CanSendVeto(t *testing.T) {
	called := false
	c := NewController(Options{
		Send:    func(string, []model.Attachment) error { called = true; return nil },
		CanSend: func() bool { return false },
	})
	c.SetText("hi")
	assert.ErrorIs(t, c.Submit(""), ErrCannotSend)
	assert.False(t, called)
	assert.Equal(t, "hi", c.Text())
}

func TestSubmit_SendErrorKeepsDraft(t *testing.T) {
	boom := errors.New("transcript busy")
	c := NewController(Options{Send: func(string, []model.Attachment) error { return boom }})
	c.SetText("hi")
	assert.ErrorIs(t, c.Submit(""), boom)
	assert.Equal(t, "hi", c.Text())
}

func TestSubmit_NormalizesText(t *testing.T) {
	c, calls := newTestController(nil)
	// "e" followed by a combining acute accent.
	c.SetText("cafe\u0301")
	require.NoError(t, c.Submit(""))
	assert.Equal(t, "caf\u00e9", (*calls)[0].text)
}

func TestFiles_Limit(t *testing.T) {
	c, _ := newTestController(nil)
	for i := 0; i < 3; i++ {
		_, err := c.AddFile(File{URL: "https://example.com/x.png", TransferMethod: TransferRemote})
		require.NoError(t, err)
	}
	_, err := c.AddFile(File{URL: "https://example.com/y.png", TransferMethod: TransferRemote})
	assert.True(t, model.IsValidationError(err))

	files := c.Files()
	assert.True(t, c.RemoveFile(files[0].ID))
	assert.False(t, c.RemoveFile("missing"))
	assert.Len(t, c.Files(), 2)
}

func TestCharCount(t *testing.T) {
	c, _ := newTestController(nil)
	c.SetText("  Cześć  ")
	assert.Equal(t, 5, c.CharCount())
}

func TestShouldSubmit(t *testing.T) {
	tests := []struct {
		name string
		ev   KeyEvent
		want bool
	}{
		{"enter", KeyEvent{Enter: true}, true},
		{"shift enter", KeyEvent{Enter: true, Shift: true}, false},
		{"alt enter", KeyEvent{Enter: true, Alt: true}, false},
		{"composing", KeyEvent{Enter: true, Composing: true}, false},
		{"other key", KeyEvent{}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ShouldSubmit(tc.ev))
		})
	}
	assert.Equal(t, "line one\nline two", TrimEnter("line one\nline two\n"))
	assert.Equal(t, "a\n", TrimEnter("a\n\n"))
}
