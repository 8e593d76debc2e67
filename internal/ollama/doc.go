// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama streams answers from a local Ollama server.
//
// It is the inbound message source of talks: ChatStream reads the NDJSON
// response of /api/chat and hands every chunk to a callback, and ToDelta
// turns a chunk into the model.Delta merged into the open answer.
//
// # Usage
//
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: url, Model: "qwen2.5:7b"})
//	msgs := ollama.FromTranscript(transcript.Turns(), system, images.Get)
//	err := client.ChatStream(ctx, msgs, func(chunk ollama.StreamChunk) {
//	    _ = transcript.UpdateLastAnswer(ollama.ToDelta(chunk))
//	})
package ollama
