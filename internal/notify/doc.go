// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package notify forwards finished question/answer pairs to an external
// webhook.
//
// A Notifier subscribes to a model.Transcript and reacts only to the falling
// edge of the responding flag. Each answer is sent at most once: its ID is
// recorded before the send is dispatched on a detached goroutine, and the
// outcome is only logged. Failures are never retried and never reach the UI.
//
// # Usage
//
//	sink, err := notify.NewDiscordSink(notify.DiscordConfig{URL: url})
//	n := notify.New(notify.Options{Sink: sink, Logger: logger})
//	n.Attach(transcript)
//	defer n.Close(ctx)
package notify
