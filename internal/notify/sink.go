// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import (
	"context"
	"time"
)

// Exchange is a finished question/answer pair.
type Exchange struct {
	AnswerID    string
	Question    string
	Answer      string
	CompletedAt time.Time
}

// Sink delivers exchanges to an external endpoint.
type Sink interface {
	Deliver(ctx context.Context, ex Exchange) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, ex Exchange) error

// Deliver calls f.
func (f SinkFunc) Deliver(ctx context.Context, ex Exchange) error {
	return f(ctx, ex)
}

// NopSink discards every exchange. It is used when no webhook is configured.
type NopSink struct{}

// Deliver does nothing.
func (NopSink) Deliver(context.Context, Exchange) error { return nil }
