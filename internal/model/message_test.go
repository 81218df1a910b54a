package model

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBodyLifecycle(t *testing.T) {
	req := require.New(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewMessage("ABCD", "alice", nil, "hi", "<p>hi</p>", at)
	req.Equal(StateActive, m.State)
	req.True(m.ReadBy.Has("alice"))

	req.NoError(m.Edit("bye", "<p>bye</p>", at.Add(time.Minute)))
	req.Equal(StateEdited, m.State)
	req.Equal(StateEdited, StateOf(false, m.EditedAt))

	req.True(m.Delete())
	req.False(m.Delete())
	req.Equal(DeletedPlaceholder, m.Content)
	req.Equal("bye", m.RawContent)

	err := m.Edit("again", "<p>again</p>", at)
	req.True(errors.Is(err, ErrNotFound))
	req.Equal(DeletedPlaceholder, m.Content)
	req.Equal(StateDeleted, StateOf(true, nil))
}

func TestReadSet(t *testing.T) {
	req := require.New(t)
	m := &Message{Sender: "alice"}
	req.True(m.MarkRead("bob"))
	req.False(m.MarkRead("bob"))
	req.Equal([]string{"alice", "bob"}, m.ReadBy.Names())
	req.Len(NewReadSet("", "carol"), 1)
}

func TestSummarizeReactions(t *testing.T) {
	req := require.New(t)
	rs := []Reaction{
		{UserID: 1, Emoji: "👍"},
		{UserID: 2, Emoji: "🎉"},
		{UserID: 2, Emoji: "👍"},
	}
	req.Equal([]ReactionGroup{
		{Emoji: "👍", Count: 2, Reacted: true},
		{Emoji: "🎉", Count: 1, Reacted: true},
	}, SummarizeReactions(rs, 2))
	req.Equal([]ReactionGroup{
		{Emoji: "👍", Count: 2, Reacted: false},
		{Emoji: "🎉", Count: 1, Reacted: false},
	}, SummarizeReactions(rs, 0))
	req.Empty(SummarizeReactions(nil, 1))
}

func TestCode(t *testing.T) {
	req := require.New(t)
	req.Equal("not_found", Code(fmt.Errorf("x: %w", ErrNotFound)))
	req.Equal("unauthorized", Code(ErrUnauthorized))
	req.Equal("invalid_input", Code(ErrInvalidInput))
	req.Equal("conflict", Code(ErrConflict))
	req.Equal("internal", Code(errors.New("boom")))
	req.Equal("", Code(nil))
}
