// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// Delta is a fragment of a streaming answer. Fields are applied in order:
// Tool opens a new reasoning step, Thinking extends the last step, Observation
// completes the last tool step, Content and Attachments extend the answer.
type Delta struct {
	Content     string
	Thinking    string
	Tool        *ToolInvocation
	Observation string
	Attachments []Attachment
}

// IsEmpty reports whether the delta carries nothing.
func (d Delta) IsEmpty() bool {
	return d.Content == "" && d.Thinking == "" && d.Tool == nil &&
		d.Observation == "" && len(d.Attachments) == 0
}

// validate checks the delta against the answer it would be merged into,
// without touching it.
func (d Delta) validate(answer *Turn) error {
	for _, a := range d.Attachments {
		if a.URL == "" {
			return &ValidationError{Field: "attachments", Message: "attachment has no url"}
		}
	}
	if d.Tool != nil && d.Tool.Name == "" {
		return &ValidationError{Field: "tool", Message: "tool invocation has no name"}
	}
	if d.Observation != "" && d.Tool == nil {
		n := len(answer.Thoughts)
		if n == 0 || answer.Thoughts[n-1].Tool == nil {
			return &SequenceError{Op: "update", Reason: "observation without a tool step"}
		}
	}
	return nil
}

// apply merges the delta into answer. validate must have passed.
func (d Delta) apply(answer *Turn) {
	if d.Tool != nil {
		tool := *d.Tool
		answer.Thoughts = append(answer.Thoughts, Thought{Tool: &tool})
	}
	if d.Thinking != "" {
		if len(answer.Thoughts) == 0 {
			answer.Thoughts = append(answer.Thoughts, Thought{})
		}
		answer.Thoughts[len(answer.Thoughts)-1].Text += d.Thinking
	}
	if d.Observation != "" {
		last := &answer.Thoughts[len(answer.Thoughts)-1]
		last.Tool.Observation += d.Observation
	}
	answer.Content += d.Content
	if len(d.Attachments) > 0 {
		answer.Attachments = append(answer.Attachments, d.Attachments...)
	}
}
