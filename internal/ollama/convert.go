// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"encoding/base64"

	"github.com/jeranaias/talks-tui/internal/model"
)

// ImageResolver returns the bytes of an uploaded image by upload id.
type ImageResolver func(uploadID string) ([]byte, bool)

// FromTranscript converts turns into chat messages. Empty answers (the shell
// of the answer being requested) are skipped. Local images are embedded when
// images can resolve them; Ollama cannot fetch remote URLs, so those are
// mentioned in the text instead.
func FromTranscript(turns []model.Turn, system string, images ImageResolver) []Message {
	msgs := make([]Message, 0, len(turns)+1)
	if system != "" {
		msgs = append(msgs, Message{Role: "system", Content: system})
	}
	for _, t := range turns {
		switch t.Role {
		case model.RoleQuestion:
			msg := Message{Role: "user", Content: t.Content}
			for _, a := range t.Attachments {
				switch {
				case a.TransferMethod == model.TransferRemoteURL:
					msg.Content += "\n\n[image: " + a.URL + "]"
				case a.UploadFileID != "" && images != nil:
					if data, ok := images(a.UploadFileID); ok {
						msg.Images = append(msg.Images, base64.StdEncoding.EncodeToString(data))
					}
				}
			}
			msgs = append(msgs, msg)
		case model.RoleAnswer:
			if t.Content == "" {
				continue
			}
			msgs = append(msgs, Message{Role: "assistant", Content: t.Content})
		}
	}
	return msgs
}

// ToDelta converts a chunk into the fragment merged into the open answer.
// Each tool call opens a reasoning step.
func ToDelta(chunk StreamChunk) []model.Delta {
	var deltas []model.Delta
	if chunk.Thinking != "" {
		deltas = append(deltas, model.Delta{Thinking: chunk.Thinking})
	}
	for _, call := range chunk.ToolCalls {
		deltas = append(deltas, model.Delta{Tool: &model.ToolInvocation{
			Name:  call.Function.Name,
			Input: string(call.Function.Arguments),
		}})
	}
	if chunk.Content != "" {
		deltas = append(deltas, model.Delta{Content: chunk.Content})
	}
	return deltas
}
