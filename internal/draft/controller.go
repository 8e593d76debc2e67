// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package draft

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/talks-tui/internal/model"
	"github.com/jeranaias/talks-tui/internal/util"
)

// ErrCannotSend is returned by Submit when the CanSend hook refuses.
var ErrCannotSend = errors.New("sending is not possible right now")

// ProgressFailed marks a file whose upload failed.
const ProgressFailed = -1

// File is an image attached to the draft.
type File struct {
	ID             string
	Name           string
	URL            string
	TransferMethod model.TransferMethod
	UploadFileID   string
	Progress       int
}

// Failed reports whether the upload failed.
func (f File) Failed() bool { return f.Progress == ProgressFailed }

// Uploading reports whether a local file is still waiting for its upload id.
func (f File) Uploading() bool {
	return f.TransferMethod == TransferLocal && f.UploadFileID == "" && !f.Failed()
}

// Shorthands for the two transfer methods.
const (
	TransferLocal  = model.TransferLocalFile
	TransferRemote = model.TransferRemoteURL
)

// SendFunc hands a submitted message to whoever appends it to the
// transcript and starts the request.
type SendFunc func(text string, attachments []model.Attachment) error

// Options configures a Controller.
type Options struct {
	Send SendFunc

	// CanSend may veto a submission, for example while the backend is down.
	CanSend func() bool

	// Responding reports whether an answer is streaming.
	Responding func() bool

	// MaxFiles caps attachments; zero means no limit.
	MaxFiles int
}

// Controller owns the draft text and attachments. Like the transcript it is
// driven from a single loop.
type Controller struct {
	opts  Options
	text  string
	files []File
}

// NewController creates a controller.
func NewController(opts Options) *Controller {
	return &Controller{opts: opts}
}

// SetText replaces the draft text.
func (c *Controller) SetText(text string) { c.text = text }

// Text returns the draft text.
func (c *Controller) Text() string { return c.text }

// CharCount returns the trimmed length shown next to the input.
func (c *Controller) CharCount() int { return util.TrimmedLen(c.text) }

// Clear empties the draft text. Attachments are kept.
func (c *Controller) Clear() { c.text = "" }

// ClearFiles drops every attachment.
func (c *Controller) ClearFiles() { c.files = nil }

// Files returns a copy of the attachments.
func (c *Controller) Files() []File {
	return append([]File(nil), c.files...)
}

// AddFile attaches f and returns it with an ID assigned.
func (c *Controller) AddFile(f File) (File, error) {
	if c.opts.MaxFiles > 0 && len(c.files) >= c.opts.MaxFiles {
		return File{}, &model.ValidationError{Field: "attachments", Message: "attachment limit reached"}
	}
	if f.URL == "" {
		return File{}, &model.ValidationError{Field: "attachments", Message: "attachment has no location"}
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.TransferMethod == TransferRemote {
		f.Progress = 100
	}
	c.files = append(c.files, f)
	return f, nil
}

// RemoveFile detaches the file with id.
func (c *Controller) RemoveFile(id string) bool {
	for i, f := range c.files {
		if f.ID == id {
			c.files = append(c.files[:i], c.files[i+1:]...)
			return true
		}
	}
	return false
}

// MarkUploaded records a finished upload.
func (c *Controller) MarkUploaded(id, uploadFileID string) bool {
	return c.update(id, func(f *File) {
		f.UploadFileID = uploadFileID
		f.Progress = 100
	})
}

// MarkFailed records a failed upload. Failed files stay visible but are not
// sent.
func (c *Controller) MarkFailed(id string) bool {
	return c.update(id, func(f *File) { f.Progress = ProgressFailed })
}

func (c *Controller) update(id string, fn func(*File)) bool {
	for i := range c.files {
		if c.files[i].ID == id {
			fn(&c.files[i])
			return true
		}
	}
	return false
}

// Submit sends override, or the draft text when override is empty.
//
// Blank text fails with a ValidationError and changes nothing. Failed
// uploads are left out. Afterwards, unless a local upload is still in
// progress, attachments are cleared, and the draft text is cleared too when
// no answer was streaming and no override was used.
func (c *Controller) Submit(override string) error {
	text := override
	if text == "" {
		text = c.text
	}
	text = norm.NFC.String(text)
	if strings.TrimSpace(text) == "" {
		return &model.ValidationError{Field: "message", Message: "Message cannot be empty", Cause: model.ErrEmptyInput}
	}
	if c.opts.CanSend != nil && !c.opts.CanSend() {
		return ErrCannotSend
	}

	// Sending usually starts a response, so sample the flag first.
	responding := c.opts.Responding != nil && c.opts.Responding()

	var attachments []model.Attachment
	for _, f := range c.files {
		if f.Failed() {
			continue
		}
		attachments = append(attachments, model.Attachment{
			URL:            f.URL,
			Kind:           "image",
			TransferMethod: f.TransferMethod,
			UploadFileID:   f.UploadFileID,
			BelongsTo:      model.OwnerUser,
		})
	}

	if c.opts.Send != nil {
		if err := c.opts.Send(text, attachments); err != nil {
			return err
		}
	}

	if c.uploading() {
		return nil
	}
	c.files = nil
	if !responding && override == "" {
		c.text = ""
	}
	return nil
}

func (c *Controller) uploading() bool {
	for _, f := range c.files {
		if f.Uploading() {
			return true
		}
	}
	return false
}
