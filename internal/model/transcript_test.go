// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects events for assertions.
type recorder struct {
	events []Event
}

func (r *recorder) listen(ev Event) { r.events = append(r.events, ev) }

func (r *recorder) kinds() []EventKind {
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

// exchange appends a question and a streamed answer the way the UI loop does.
func exchange(t *testing.T, tr *Transcript, q, a string) (Turn, Turn) {
	t.Helper()
	question := NewQuestion(q)
	require.NoError(t, tr.Append(question))
	tr.SetResponding(true)
	answer := NewAnswer()
	require.NoError(t, tr.Append(answer))
	require.NoError(t, tr.UpdateLastAnswer(Delta{Content: a}))
	tr.SetResponding(false)
	return question, answer
}

// =============================================================================
// APPEND TESTS
// =============================================================================

func TestTranscript_AppendPreservesOrder(t *testing.T) {
	tr := NewTranscript()
	var ids []string
	for i := 0; i < 5; i++ {
		q, a := exchange(t, tr, "q", "a")
		ids = append(ids, q.ID, a.ID)
	}

	turns := tr.Turns()
	require.Len(t, turns, len(ids))
	for i, turn := range turns {
		assert.Equal(t, ids[i], turn.ID, "turn %d", i)
	}
	assert.Len(t, tr.Questions(), 5)
	assert.Len(t, tr.Answers(), 5)
}

func TestTranscript_AppendAssignsIDAndPairsAnswer(t *testing.T) {
	tr := NewTranscript()
	require.NoError(t, tr.Append(Turn{Role: RoleQuestion, Content: "hi"}))
	require.NoError(t, tr.Append(Turn{Role: RoleAnswer}))

	q, _ := tr.LastQuestion()
	a, _ := tr.LastAnswer()
	assert.NotEmpty(t, q.ID)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, q.ID, a.ReplyTo)
}

func TestTranscript_AppendWhileAnswerOpen(t *testing.T) {
	tr := NewTranscript()
	require.NoError(t, tr.Append(NewQuestion("first")))
	tr.SetResponding(true)
	require.NoError(t, tr.Append(NewAnswer()))

	err := tr.Append(NewAnswer())
	require.Error(t, err)
	assert.True(t, IsSequenceError(err))

	err = tr.Append(NewQuestion("second"))
	assert.True(t, IsSequenceError(err))
	assert.Equal(t, 2, tr.Len())

	tr.SetResponding(false)
	assert.NoError(t, tr.Append(NewQuestion("second")))
}

func TestTranscript_AppendRejectsDuplicateAndUnknownRole(t *testing.T) {
	tr := NewTranscript()
	q := NewQuestion("hi")
	require.NoError(t, tr.Append(q))
	assert.True(t, IsSequenceError(tr.Append(q)))
	assert.True(t, IsSequenceError(tr.Append(Turn{Role: "system"})))
	assert.Equal(t, 1, tr.Len())
}

// =============================================================================
// UPDATE TESTS
// =============================================================================

func TestTranscript_UpdateLastAnswerErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(tr *Transcript)
	}{
		{"empty", func(tr *Transcript) {}},
		{"last is question", func(tr *Transcript) {
			_ = tr.Append(NewQuestion("q"))
		}},
		{"answer finalized", func(tr *Transcript) {
			_ = tr.Append(NewQuestion("q"))
			tr.SetResponding(true)
			_ = tr.Append(NewAnswer())
			tr.SetResponding(false)
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr := NewTranscript()
			tc.setup(tr)
			before := tr.Turns()

			err := tr.UpdateLastAnswer(Delta{Content: "x"})
			require.Error(t, err)
			assert.True(t, IsSequenceError(err), "got %T", err)
			assert.Equal(t, before, tr.Turns())
		})
	}
}

func TestTranscript_UpdateMergesFragments(t *testing.T) {
	tr := NewTranscript()
	require.NoError(t, tr.Append(NewQuestion("weather?")))
	tr.SetResponding(true)
	require.NoError(t, tr.Append(NewAnswer()))

	require.NoError(t, tr.UpdateLastAnswer(Delta{Thinking: "need a "}))
	require.NoError(t, tr.UpdateLastAnswer(Delta{Thinking: "lookup"}))
	require.NoError(t, tr.UpdateLastAnswer(Delta{Tool: &ToolInvocation{Name: "weather", Input: `{"city":"Kraków"}`}}))
	require.NoError(t, tr.UpdateLastAnswer(Delta{Observation: "12C"}))
	require.NoError(t, tr.UpdateLastAnswer(Delta{Content: "It is "}))
	require.NoError(t, tr.UpdateLastAnswer(Delta{
		Content:     "12C.",
		Attachments: []Attachment{{URL: "https://example.com/map.png", Kind: "image", BelongsTo: OwnerAssistant}},
	}))

	a, ok := tr.LastAnswer()
	require.True(t, ok)
	assert.Equal(t, "It is 12C.", a.Content)
	require.Len(t, a.Thoughts, 2)
	assert.Equal(t, "need a lookup", a.Thoughts[0].Text)
	assert.Nil(t, a.Thoughts[0].Tool)
	require.NotNil(t, a.Thoughts[1].Tool)
	assert.Equal(t, "12C", a.Thoughts[1].Tool.Observation)
	assert.True(t, a.Thoughts[1].Finished(true))
	assert.False(t, a.Thoughts[0].Finished(true))
	assert.True(t, a.Thoughts[0].Finished(false))
	assert.Equal(t, []string{"https://example.com/map.png"}, a.Images(OwnerAssistant))
}

func TestTranscript_InvalidDeltaLeavesStateUnchanged(t *testing.T) {
	tr := NewTranscript()
	require.NoError(t, tr.Append(NewQuestion("q")))
	tr.SetResponding(true)
	require.NoError(t, tr.Append(NewAnswer()))
	require.NoError(t, tr.UpdateLastAnswer(Delta{Content: "partial"}))
	before := tr.Turns()

	// Content is valid but the attachment is not: nothing may be applied.
	err := tr.UpdateLastAnswer(Delta{Content: " more", Attachments: []Attachment{{Kind: "image"}}})
	assert.True(t, IsValidationError(err))

	err = tr.UpdateLastAnswer(Delta{Content: " more", Observation: "orphan"})
	assert.True(t, IsSequenceError(err))

	assert.Equal(t, before, tr.Turns())
}

func TestTranscript_ReadersGetCopies(t *testing.T) {
	tr := NewTranscript()
	require.NoError(t, tr.Append(NewQuestion("q", Attachment{URL: "a.png", Kind: "image"})))

	turns := tr.Turns()
	turns[0].Content = "mutated"
	turns[0].Attachments[0].URL = "mutated"

	last, _ := tr.Last()
	assert.Equal(t, "q", last.Content)
	assert.Equal(t, "a.png", last.Attachments[0].URL)
}

// =============================================================================
// RESPONDING AND RESET TESTS
// =============================================================================

func TestTranscript_RespondingEvents(t *testing.T) {
	tr := NewTranscript()
	rec := &recorder{}
	tr.Subscribe(rec.listen)

	exchange(t, tr, "What courses do you offer?", "We offer three courses.")
	tr.SetResponding(false)

	assert.Equal(t, []EventKind{
		EventAppended, EventResponding, EventAppended, EventUpdated, EventResponding, EventResponding,
	}, rec.kinds())

	var edges int
	for _, ev := range rec.events {
		if ev.FallingEdge() {
			edges++
		}
	}
	assert.Equal(t, 1, edges)
	assert.Equal(t, "", tr.StreamingID())
}

func TestTranscript_StreamingID(t *testing.T) {
	tr := NewTranscript()
	require.NoError(t, tr.Append(NewQuestion("q")))
	tr.SetResponding(true)
	a := NewAnswer()
	require.NoError(t, tr.Append(a))
	assert.Equal(t, a.ID, tr.StreamingID())
	assert.True(t, tr.IsResponding())
}

func TestTranscript_Reset(t *testing.T) {
	tr := NewTranscript()
	rec := &recorder{}
	tr.Subscribe(rec.listen)

	q, a := exchange(t, tr, "q", "a")
	tr.SetResponding(true)
	tr.Reset()

	assert.True(t, tr.IsEmpty())
	assert.False(t, tr.IsResponding())
	assert.Equal(t, uint64(1), tr.Generation())
	_, ok := tr.LastAnswer()
	assert.False(t, ok)
	_, _, ok = tr.LastExchange()
	assert.False(t, ok)

	last := rec.events[len(rec.events)-1]
	assert.Equal(t, EventReset, last.Kind)
	assert.Equal(t, uint64(1), last.Generation)

	// Identities may be reused once the old conversation is gone.
	require.NoError(t, tr.Append(q))
	require.NoError(t, tr.Append(a))
}

func TestTranscript_LastExchange(t *testing.T) {
	tr := NewTranscript()
	_, _, ok := tr.LastExchange()
	assert.False(t, ok)

	exchange(t, tr, "first", "one")
	q2, a2 := exchange(t, tr, "second", "two")

	q, a, ok := tr.LastExchange()
	require.True(t, ok)
	assert.Equal(t, q2.ID, q.ID)
	assert.Equal(t, a2.ID, a.ID)
	assert.Equal(t, "two", a.Content)

	// A trailing unanswered question does not change the last exchange.
	require.NoError(t, tr.Append(NewQuestion("third")))
	_, a, ok = tr.LastExchange()
	require.True(t, ok)
	assert.Equal(t, a2.ID, a.ID)
}

func TestTranscript_AnswerWithoutQuestion(t *testing.T) {
	tr := NewTranscript()
	require.NoError(t, tr.Append(NewAnswer()))
	tr.SetResponding(false)
	_, _, ok := tr.LastExchange()
	assert.False(t, ok)
}

func TestTranscript_Unsubscribe(t *testing.T) {
	tr := NewTranscript()
	rec := &recorder{}
	unsubscribe := tr.Subscribe(rec.listen)
	tr.SetResponding(true)
	unsubscribe()
	tr.SetResponding(false)
	assert.Len(t, rec.events, 1)
}

func TestTranscript_Title(t *testing.T) {
	tr := NewTranscript()
	assert.Equal(t, "New conversation", tr.Title())
	require.NoError(t, tr.Append(NewQuestion("\nWhat courses do you offer at the academy this autumn and how much do they cost?")))
	title := tr.Title()
	assert.LessOrEqual(t, len([]rune(title)), 50)
	assert.Contains(t, title, "What courses")
}
