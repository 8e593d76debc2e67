// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/talks-tui/internal/model"
)

// DefaultTimeout bounds a single delivery, including rate limiter waits.
const DefaultTimeout = 10 * time.Second

// Options configures a Notifier.
type Options struct {
	Sink    Sink
	Timeout time.Duration
	Logger  *zap.Logger
}

// Notifier sends each completed answer of a transcript to a Sink at most
// once.
//
// Event handling runs on the transcript's loop. Deliveries run on their own
// goroutines and only log their outcome.
type Notifier struct {
	sink    Sink
	timeout time.Duration
	logger  *zap.Logger

	mu          sync.Mutex
	sent        map[string]struct{}
	closed      bool
	transcript  *model.Transcript
	unsubscribe func()

	// base is cancelled when Close gives up waiting.
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Notifier. A nil Sink discards exchanges.
func New(opts Options) *Notifier {
	if opts.Sink == nil {
		opts.Sink = NopSink{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Notifier{
		sink:    opts.Sink,
		timeout: opts.Timeout,
		logger:  opts.Logger.Named("notify"),
		sent:    make(map[string]struct{}),
		base:    base,
		cancel:  cancel,
	}
}

// Attach subscribes to t, replacing any previously attached transcript.
func (n *Notifier) Attach(t *model.Transcript) {
	n.Detach()
	n.mu.Lock()
	n.transcript = t
	n.mu.Unlock()
	unsubscribe := t.Subscribe(n.handle)
	n.mu.Lock()
	n.unsubscribe = unsubscribe
	n.mu.Unlock()
}

// Detach stops observing the attached transcript.
func (n *Notifier) Detach() {
	n.mu.Lock()
	unsubscribe := n.unsubscribe
	n.unsubscribe = nil
	n.transcript = nil
	n.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (n *Notifier) handle(ev model.Event) {
	switch {
	case ev.Kind == model.EventReset:
		n.mu.Lock()
		n.sent = make(map[string]struct{})
		n.mu.Unlock()
		n.logger.Debug("dedup set cleared", zap.Uint64("generation", ev.Generation))
	case ev.FallingEdge():
		n.completed()
	}
}

// completed handles a true to false responding transition.
func (n *Notifier) completed() {
	n.mu.Lock()
	t := n.transcript
	closed := n.closed
	n.mu.Unlock()
	if t == nil || closed {
		return
	}

	question, answer, ok := t.LastExchange()
	if !ok {
		n.logger.Debug("responding ended without a complete exchange")
		return
	}

	// The marker is committed before dispatch so a re-entrant trigger on the
	// same loop cannot send twice while the first delivery is in flight.
	n.mu.Lock()
	if _, dup := n.sent[answer.ID]; dup {
		n.mu.Unlock()
		n.logger.Debug("answer already sent", zap.String("answer_id", answer.ID))
		return
	}
	n.sent[answer.ID] = struct{}{}
	n.wg.Add(1)
	n.mu.Unlock()

	go n.deliver(Exchange{
		AnswerID:    answer.ID,
		Question:    question.Content,
		Answer:      answer.Content,
		CompletedAt: time.Now(),
	})
}

func (n *Notifier) deliver(ex Exchange) {
	defer n.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("sink panicked",
				zap.String("answer_id", ex.AnswerID),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()

	ctx, cancel := context.WithTimeout(n.base, n.timeout)
	defer cancel()

	start := time.Now()
	err := n.sink.Deliver(ctx, ex)
	if err != nil {
		n.logger.Warn("completion notification failed",
			zap.String("answer_id", ex.AnswerID),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return
	}
	n.logger.Info("completion notification sent",
		zap.String("answer_id", ex.AnswerID),
		zap.Int("question_len", len(ex.Question)),
		zap.Int("answer_len", len(ex.Answer)),
		zap.Duration("duration", time.Since(start)))
}

// Sent reports whether the answer with id has been dispatched since the last
// reset.
func (n *Notifier) Sent(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.sent[id]
	return ok
}

// Wait blocks until every dispatched delivery has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Close detaches the notifier and waits for in-flight deliveries until ctx
// is done, then cancels whatever is left.
func (n *Notifier) Close(ctx context.Context) error {
	n.Detach()
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		n.cancel()
		return nil
	case <-ctx.Done():
		n.cancel()
		<-done
		return ctx.Err()
	}
}
