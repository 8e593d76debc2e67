// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"github.com/jeranaias/talks-tui/internal/util"
)

// =============================================================================
// EVENTS
// =============================================================================

// EventKind identifies the mutation a subscriber is told about.
type EventKind int

const (
	EventAppended EventKind = iota
	EventUpdated
	EventResponding
	EventReset
)

// String returns the event kind name used in logs.
func (k EventKind) String() string {
	switch k {
	case EventAppended:
		return "appended"
	case EventUpdated:
		return "updated"
	case EventResponding:
		return "responding"
	case EventReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after a mutation has been applied.
type Event struct {
	Kind EventKind

	// Turn is a copy of the appended or updated turn.
	Turn *Turn

	Responding    bool
	WasResponding bool

	// Generation increments on every Reset.
	Generation uint64
}

// FallingEdge reports whether the event is a true to false responding change.
func (e Event) FallingEdge() bool {
	return e.Kind == EventResponding && e.WasResponding && !e.Responding
}

// Listener receives transcript events synchronously on the caller's loop.
type Listener func(Event)

type subscription struct {
	id int
	fn Listener
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is the ordered turn sequence of one conversation plus the
// responding flag.
//
// At most one answer is open (streaming) at a time and it is always the last
// turn. The most recent question and answer are tracked by index as turns
// arrive so the notifier and renderer never rescan the list.
type Transcript struct {
	turns []Turn
	index map[string]int

	responding bool
	open       bool

	lastQuestion int
	lastAnswer   int

	generation uint64

	subs   []subscription
	nextID int
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{
		index:        make(map[string]int),
		lastQuestion: -1,
		lastAnswer:   -1,
	}
}

// Subscribe registers fn for every subsequent event and returns a function
// that removes it.
func (t *Transcript) Subscribe(fn Listener) (unsubscribe func()) {
	t.nextID++
	id := t.nextID
	t.subs = append(t.subs, subscription{id: id, fn: fn})
	return func() {
		for i, s := range t.subs {
			if s.id == id {
				t.subs = append(t.subs[:i:i], t.subs[i+1:]...)
				return
			}
		}
	}
}

func (t *Transcript) emit(ev Event) {
	ev.Responding = t.responding
	ev.Generation = t.generation
	if ev.Kind != EventResponding {
		ev.WasResponding = t.responding
	}
	// Copy so listeners may unsubscribe while being called.
	subs := append([]subscription(nil), t.subs...)
	for _, s := range subs {
		s.fn(ev)
	}
}

// Append adds turn to the end of the transcript. An empty ID is filled in.
// Appending an answer opens it for UpdateLastAnswer until the next
// SetResponding(false). Nothing may be appended while an answer is open.
func (t *Transcript) Append(turn Turn) error {
	if !turn.Role.Valid() {
		return &SequenceError{Op: "append", Reason: "unknown role " + string(turn.Role)}
	}
	if t.open {
		return &SequenceError{Op: "append", Reason: "answer " + t.turns[len(t.turns)-1].ID + " is still streaming"}
	}
	if turn.ID == "" {
		turn.ID = NewID()
	}
	if _, dup := t.index[turn.ID]; dup {
		return &SequenceError{Op: "append", Reason: "duplicate turn id " + turn.ID}
	}

	turn = turn.Clone()
	pos := len(t.turns)
	switch turn.Role {
	case RoleQuestion:
		t.lastQuestion = pos
	case RoleAnswer:
		if turn.ReplyTo == "" && t.lastQuestion >= 0 {
			turn.ReplyTo = t.turns[t.lastQuestion].ID
		}
		t.lastAnswer = pos
		t.open = true
	}
	t.turns = append(t.turns, turn)
	t.index[turn.ID] = pos

	out := turn.Clone()
	t.emit(Event{Kind: EventAppended, Turn: &out})
	return nil
}

// UpdateLastAnswer merges d into the open answer. It fails with a
// SequenceError when the last turn is missing, is a question, or has been
// finalized, and with a ValidationError for a malformed delta. On failure the
// transcript is unchanged.
func (t *Transcript) UpdateLastAnswer(d Delta) error {
	n := len(t.turns)
	if n == 0 {
		return &SequenceError{Op: "update", Reason: "transcript is empty"}
	}
	last := &t.turns[n-1]
	if !last.IsAnswer() {
		return &SequenceError{Op: "update", Reason: "last turn is a question"}
	}
	if !t.open {
		return &SequenceError{Op: "update", Reason: "answer " + last.ID + " is finalized"}
	}
	if err := d.validate(last); err != nil {
		return err
	}

	updated := last.Clone()
	d.apply(&updated)
	t.turns[n-1] = updated

	out := updated.Clone()
	t.emit(Event{Kind: EventUpdated, Turn: &out})
	return nil
}

// SetResponding sets the responding flag. Setting it to false finalizes the
// open answer. Subscribers always receive an EventResponding carrying the
// previous value so they can detect the falling edge.
func (t *Transcript) SetResponding(flag bool) {
	was := t.responding
	t.responding = flag
	if !flag {
		t.open = false
	}
	t.emit(Event{Kind: EventResponding, WasResponding: was})
}

// Reset clears every turn and the responding flag and starts a new
// generation.
func (t *Transcript) Reset() {
	t.turns = nil
	t.index = make(map[string]int)
	t.responding = false
	t.open = false
	t.lastQuestion = -1
	t.lastAnswer = -1
	t.generation++
	t.emit(Event{Kind: EventReset})
}

// =============================================================================
// QUERIES
// =============================================================================

// IsEmpty reports whether the transcript has no turns.
func (t *Transcript) IsEmpty() bool { return len(t.turns) == 0 }

// Len returns the number of turns.
func (t *Transcript) Len() int { return len(t.turns) }

// IsResponding returns the responding flag.
func (t *Transcript) IsResponding() bool { return t.responding }

// Generation returns the number of resets so far.
func (t *Transcript) Generation() uint64 { return t.generation }

// StreamingID returns the ID of the open answer, or "" when none is open.
func (t *Transcript) StreamingID() string {
	if !t.open {
		return ""
	}
	return t.turns[len(t.turns)-1].ID
}

// Turns returns copies of all turns in arrival order.
func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	for i, turn := range t.turns {
		out[i] = turn.Clone()
	}
	return out
}

// Last returns the last turn.
func (t *Transcript) Last() (Turn, bool) {
	if len(t.turns) == 0 {
		return Turn{}, false
	}
	return t.turns[len(t.turns)-1].Clone(), true
}

// Get returns the turn with the given ID.
func (t *Transcript) Get(id string) (Turn, bool) {
	i, ok := t.index[id]
	if !ok {
		return Turn{}, false
	}
	return t.turns[i].Clone(), true
}

// LastQuestion returns the most recent question.
func (t *Transcript) LastQuestion() (Turn, bool) {
	if t.lastQuestion < 0 {
		return Turn{}, false
	}
	return t.turns[t.lastQuestion].Clone(), true
}

// LastAnswer returns the most recent answer.
func (t *Transcript) LastAnswer() (Turn, bool) {
	if t.lastAnswer < 0 {
		return Turn{}, false
	}
	return t.turns[t.lastAnswer].Clone(), true
}

// LastExchange returns the most recent answer and the question it replies
// to. ok is false unless both exist and the question precedes the answer.
func (t *Transcript) LastExchange() (question, answer Turn, ok bool) {
	if t.lastAnswer < 0 {
		return Turn{}, Turn{}, false
	}
	a := t.turns[t.lastAnswer]
	qi, found := t.index[a.ReplyTo]
	if !found || qi > t.lastAnswer || !t.turns[qi].IsQuestion() {
		return Turn{}, Turn{}, false
	}
	return t.turns[qi].Clone(), a.Clone(), true
}

// Questions returns all question turns in arrival order.
func (t *Transcript) Questions() []Turn { return t.byRole(RoleQuestion) }

// Answers returns all answer turns in arrival order.
func (t *Transcript) Answers() []Turn { return t.byRole(RoleAnswer) }

func (t *Transcript) byRole(r Role) []Turn {
	var out []Turn
	for _, turn := range t.turns {
		if turn.Role == r {
			out = append(out, turn.Clone())
		}
	}
	return out
}

// Title derives a short conversation title from the first question.
func (t *Transcript) Title() string {
	for _, turn := range t.turns {
		if turn.IsQuestion() {
			return util.TruncateRunes(util.FirstLine(turn.Content), 50)
		}
	}
	return "New conversation"
}
