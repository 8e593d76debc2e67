// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the transcript of a chat conversation.
//
// A Transcript is an ordered list of turns (questions and answers) plus a
// responding flag that is true while the last answer is still streaming.
// It is the single source of truth for the renderer and for side-effect
// subscribers such as the completion notifier.
//
// # Key Types
//
//   - Turn: one question or answer with attachments and reasoning steps
//   - Delta: a streamed fragment merged into the open answer
//   - Transcript: the store, with Append, UpdateLastAnswer, SetResponding, Reset
//   - Event: what subscribers receive after each mutation
//
// # Usage
//
//	t := model.NewTranscript()
//	t.Subscribe(func(ev model.Event) { ... })
//
//	_ = t.Append(model.NewQuestion("What courses do you offer?"))
//	t.SetResponding(true)
//	_ = t.Append(model.NewAnswer())
//	_ = t.UpdateLastAnswer(model.Delta{Content: "We offer three courses."})
//	t.SetResponding(false)
//
// A Transcript is not safe for concurrent use. It is driven from a single
// event loop (the Bubble Tea update loop or the line-mode REPL).
package model
