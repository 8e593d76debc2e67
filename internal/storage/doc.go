// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage archives finished conversations in SQLite.
//
// The TUI saves the transcript when a conversation is reset or the program
// exits; `talks history` reads it back. The archive is a record only and is
// never loaded back into a live transcript.
//
// # Usage
//
//	archive, err := storage.Open(path)
//	if err != nil {
//	    return err
//	}
//	defer archive.Close()
//
//	_, err = archive.Save(ctx, storage.FromTranscript(id, transcript, model))
//	metas, err := archive.List(ctx, 20)
package storage
