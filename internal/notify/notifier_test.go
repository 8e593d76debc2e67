// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jeranaias/talks-tui/internal/model"
)

// fakeSink records deliveries and can fail or block on demand.
type fakeSink struct {
	mu        sync.Mutex
	exchanges []Exchange
	err       error
	block     chan struct{}
}

func (f *fakeSink) Deliver(ctx context.Context, ex Exchange) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanges = append(f.exchanges, ex)
	return f.err
}

func (f *fakeSink) calls() []Exchange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Exchange(nil), f.exchanges...)
}

func converse(t *testing.T, tr *model.Transcript, answerID, q, a string) {
	t.Helper()
	require.NoError(t, tr.Append(model.NewQuestion(q)))
	tr.SetResponding(true)
	answer := model.NewAnswer()
	if answerID != "" {
		answer.ID = answerID
	}
	require.NoError(t, tr.Append(answer))
	require.NoError(t, tr.UpdateLastAnswer(model.Delta{Content: a}))
	tr.SetResponding(false)
}

func TestNotifier_SendsOnceOnFallingEdge(t *testing.T) {
	sink := &fakeSink{}
	n := New(Options{Sink: sink})
	tr := model.NewTranscript()
	n.Attach(tr)

	converse(t, tr, "", "What courses do you offer?", "We offer three courses.")
	n.Wait()

	calls := sink.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "What courses do you offer?", calls[0].Question)
	assert.Equal(t, "We offer three courses.", calls[0].Answer)

	// Another true to false cycle with no new answer sends nothing.
	tr.SetResponding(true)
	tr.SetResponding(false)
	tr.SetResponding(false)
	n.Wait()
	assert.Len(t, sink.calls(), 1)
}

func TestNotifier_IgnoresRisingEdgeAndIncompleteExchange(t *testing.T) {
	sink := &fakeSink{}
	n := New(Options{Sink: sink})
	tr := model.NewTranscript()
	n.Attach(tr)

	tr.SetResponding(true)
	tr.SetResponding(false)
	require.NoError(t, tr.Append(model.NewQuestion("only a question")))
	tr.SetResponding(true)
	tr.SetResponding(false)
	n.Wait()

	assert.Empty(t, sink.calls())
}

func TestNotifier_EachAnswerSentOnce(t *testing.T) {
	sink := &fakeSink{}
	n := New(Options{Sink: sink})
	tr := model.NewTranscript()
	n.Attach(tr)

	converse(t, tr, "", "q1", "a1")
	converse(t, tr, "", "q2", "a2")
	n.Wait()

	calls := sink.calls()
	require.Len(t, calls, 2)
	got := map[string]string{calls[0].Question: calls[0].Answer, calls[1].Question: calls[1].Answer}
	assert.Equal(t, map[string]string{"q1": "a1", "q2": "a2"}, got)
}

func TestNotifier_MarksBeforeDispatch(t *testing.T) {
	sink := &fakeSink{block: make(chan struct{})}
	n := New(Options{Sink: sink})
	tr := model.NewTranscript()
	n.Attach(tr)

	converse(t, tr, "answer-1", "q", "a")
	assert.True(t, n.Sent("answer-1"))

	// A second falling edge while the first delivery is still blocked.
	tr.SetResponding(true)
	tr.SetResponding(false)

	close(sink.block)
	n.Wait()
	assert.Len(t, sink.calls(), 1)
}

func TestNotifier_ResetClearsDedup(t *testing.T) {
	sink := &fakeSink{}
	n := New(Options{Sink: sink})
	tr := model.NewTranscript()
	n.Attach(tr)

	converse(t, tr, "reused", "q", "first conversation")
	n.Wait()
	tr.Reset()
	assert.False(t, n.Sent("reused"))

	converse(t, tr, "reused", "q", "second conversation")
	n.Wait()

	calls := sink.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "second conversation", calls[1].Answer)
}

func TestNotifier_FailureIsSwallowed(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	sink := &fakeSink{err: &SinkDeliveryError{Cause: errors.New("connection refused")}}
	n := New(Options{Sink: sink, Logger: zap.New(core)})
	tr := model.NewTranscript()
	n.Attach(tr)

	converse(t, tr, "a1", "q", "a")
	n.Wait()

	// The store keeps working and the failed answer is not retried.
	converse(t, tr, "a2", "q2", "a2")
	n.Wait()
	assert.Len(t, sink.calls(), 2)
	assert.True(t, n.Sent("a1"))
	assert.Equal(t, 4, tr.Len())

	failures := logs.FilterMessage("completion notification failed").All()
	assert.Len(t, failures, 2)
}

func TestNotifier_PanickingSinkIsRecovered(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	n := New(Options{
		Sink:   SinkFunc(func(context.Context, Exchange) error { panic("boom") }),
		Logger: zap.New(core),
	})
	tr := model.NewTranscript()
	n.Attach(tr)

	converse(t, tr, "", "q", "a")
	n.Wait()
	assert.Equal(t, 1, logs.FilterMessage("sink panicked").Len())
}

func TestNotifier_CloseCancelsStuckDelivery(t *testing.T) {
	sink := &fakeSink{block: make(chan struct{})}
	n := New(Options{Sink: sink, Timeout: time.Minute})
	tr := model.NewTranscript()
	n.Attach(tr)
	converse(t, tr, "", "q", "a")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := n.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// A closed notifier no longer observes the transcript.
	converse(t, tr, "", "q2", "a2")
	assert.Empty(t, sink.calls())
}

func TestNotifier_DetachStopsObserving(t *testing.T) {
	sink := &fakeSink{}
	n := New(Options{Sink: sink})
	tr := model.NewTranscript()
	n.Attach(tr)
	n.Detach()

	converse(t, tr, "", "q", "a")
	n.Wait()
	assert.Empty(t, sink.calls())
}
