// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role is the side of the conversation a turn belongs to.
type Role string

const (
	RoleQuestion Role = "question"
	RoleAnswer   Role = "answer"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleQuestion:
		return "You"
	case RoleAnswer:
		return "Assistant"
	default:
		return string(r)
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleQuestion || r == RoleAnswer
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

// TransferMethod says how an attachment reaches the backend.
type TransferMethod string

const (
	TransferLocalFile TransferMethod = "local_file"
	TransferRemoteURL TransferMethod = "remote_url"
)

// Owner says which side of the conversation produced an attachment.
type Owner string

const (
	OwnerUser      Owner = "user"
	OwnerAssistant Owner = "assistant"
)

// Attachment is a file reference carried by a turn.
type Attachment struct {
	URL            string         `json:"url"`
	Kind           string         `json:"kind"`
	TransferMethod TransferMethod `json:"transfer_method,omitempty"`
	UploadFileID   string         `json:"upload_file_id,omitempty"`
	BelongsTo      Owner          `json:"belongs_to,omitempty"`
}

// =============================================================================
// REASONING STEPS
// =============================================================================

// ToolInvocation describes a tool the model called while answering.
type ToolInvocation struct {
	Name        string `json:"name"`
	Input       string `json:"input,omitempty"`
	Observation string `json:"observation,omitempty"`
}

// Thought is one reasoning step of an answer.
type Thought struct {
	Text        string          `json:"text,omitempty"`
	Tool        *ToolInvocation `json:"tool,omitempty"`
	Attachments []Attachment    `json:"attachments,omitempty"`
}

// Finished reports whether the step is complete. Tool steps finish when an
// observation arrives; everything finishes once the answer stops responding.
func (th Thought) Finished(responding bool) bool {
	if !responding {
		return true
	}
	return th.Tool != nil && th.Tool.Observation != ""
}

// =============================================================================
// TURN TYPE
// =============================================================================

// Turn is a single question or answer in the transcript.
type Turn struct {
	ID          string       `json:"id"`
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`

	// Answer-only.
	Thoughts []Thought `json:"thoughts,omitempty"`
	ReplyTo  string    `json:"reply_to,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewQuestion creates a complete question turn.
func NewQuestion(content string, attachments ...Attachment) Turn {
	return Turn{
		ID:          NewID(),
		Role:        RoleQuestion,
		Content:     content,
		Attachments: append([]Attachment(nil), attachments...),
		CreatedAt:   time.Now(),
	}
}

// NewAnswer creates an empty answer shell that is filled by deltas.
func NewAnswer() Turn {
	return Turn{
		ID:        NewID(),
		Role:      RoleAnswer,
		CreatedAt: time.Now(),
	}
}

// IsQuestion reports whether the turn is a question.
func (t Turn) IsQuestion() bool { return t.Role == RoleQuestion }

// IsAnswer reports whether the turn is an answer.
func (t Turn) IsAnswer() bool { return t.Role == RoleAnswer }

// Clone returns a deep copy so readers never alias store state.
func (t Turn) Clone() Turn {
	out := t
	out.Attachments = cloneAttachments(t.Attachments)
	if t.Thoughts != nil {
		out.Thoughts = make([]Thought, len(t.Thoughts))
		for i, th := range t.Thoughts {
			out.Thoughts[i] = th
			out.Thoughts[i].Attachments = cloneAttachments(th.Attachments)
			if th.Tool != nil {
				tool := *th.Tool
				out.Thoughts[i].Tool = &tool
			}
		}
	}
	return out
}

// Images returns attachment URLs of the given owner, including those
// produced by reasoning steps.
func (t Turn) Images(owner Owner) []string {
	var urls []string
	collect := func(atts []Attachment) {
		for _, a := range atts {
			if a.BelongsTo == owner || (a.BelongsTo == "" && owner == defaultOwner(t.Role)) {
				urls = append(urls, a.URL)
			}
		}
	}
	collect(t.Attachments)
	for _, th := range t.Thoughts {
		collect(th.Attachments)
	}
	return urls
}

func defaultOwner(r Role) Owner {
	if r == RoleAnswer {
		return OwnerAssistant
	}
	return OwnerUser
}

func cloneAttachments(in []Attachment) []Attachment {
	if in == nil {
		return nil
	}
	return append([]Attachment(nil), in...)
}

// NewID returns a fresh turn identifier.
func NewID() string {
	return uuid.NewString()
}
