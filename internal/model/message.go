package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
)

// MaxContentLength is the longest raw markdown a message may carry, in characters.
const MaxContentLength = 2000

// DeletedPlaceholder replaces the rendered content of a soft-deleted message.
const DeletedPlaceholder = "<em>This message has been deleted.</em>"

// MessageState is the lifecycle of a room or direct message.
// Deleted is terminal.
type MessageState int

const (
	StateActive MessageState = iota
	StateEdited
	StateDeleted
)

func (s MessageState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateEdited:
		return "edited"
	case StateDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StateOf derives the state from the persisted flag pair.
func StateOf(isDeleted bool, editedAt *time.Time) MessageState {
	switch {
	case isDeleted:
		return StateDeleted
	case editedAt != nil:
		return StateEdited
	default:
		return StateActive
	}
}

// Body is the mutable content shared by room and direct messages.
// Content (sanitized HTML) and RawContent (markdown) always change together,
// except on delete where RawContent is kept for audit.
type Body struct {
	Content    string       `json:"content"`
	RawContent string       `json:"raw_content"`
	EditedAt   *time.Time   `json:"edited_at,omitempty"`
	State      MessageState `json:"-"`
}

func (b *Body) IsDeleted() bool { return b.State == StateDeleted }

// Edit replaces both content forms. A deleted body cannot be edited.
func (b *Body) Edit(raw, html string, at time.Time) error {
	if b.State == StateDeleted {
		return fmt.Errorf("edit deleted message: %w", ErrNotFound)
	}
	b.RawContent = raw
	b.Content = html
	b.EditedAt = &at
	b.State = StateEdited
	return nil
}

// Delete soft-deletes the body and reports whether the state changed.
func (b *Body) Delete() bool {
	if b.State == StateDeleted {
		return false
	}
	b.State = StateDeleted
	b.Content = DeletedPlaceholder
	return true
}

// ReadSet is the set of usernames that have observed a message.
type ReadSet map[string]struct{}

func NewReadSet(names ...string) ReadSet {
	s := make(ReadSet, len(names))
	for _, n := range names {
		if n != "" {
			s[n] = struct{}{}
		}
	}
	return s
}

// Add reports whether name was newly added.
func (s ReadSet) Add(name string) bool {
	if _, ok := s[name]; ok {
		return false
	}
	s[name] = struct{}{}
	return true
}

func (s ReadSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the members sorted, for stable persistence and payloads.
func (s ReadSet) Names() []string {
	names := lo.Keys(s)
	sort.Strings(names)
	return names
}

type Message struct {
	ID       int64  `json:"id"`
	RoomCode string `json:"room_code"`
	Sender   string `json:"sender"`
	// UserID is nil when the sender has no persisted identity.
	UserID    *int64    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Body
	ReadBy   ReadSet `json:"-"`
	RemoteID string  `json:"-"`
}

// NewMessage builds an active message already read by its sender.
func NewMessage(room, sender string, userID *int64, raw, html string, at time.Time) *Message {
	return &Message{
		RoomCode:  room,
		Sender:    sender,
		UserID:    userID,
		CreatedAt: at,
		Body:      Body{Content: html, RawContent: raw, State: StateActive},
		ReadBy:    NewReadSet(sender),
	}
}

// MarkRead adds reader to ReadBy and reports whether it was absent.
func (m *Message) MarkRead(reader string) bool {
	if m.ReadBy == nil {
		m.ReadBy = NewReadSet(m.Sender)
	}
	return m.ReadBy.Add(reader)
}

type Reaction struct {
	ID        int64     `json:"id"`
	MessageID int64     `json:"message_id"`
	UserID    int64     `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// ReactionAction is the outcome of a reaction toggle.
type ReactionAction string

const (
	ReactionAdded   ReactionAction = "added"
	ReactionRemoved ReactionAction = "removed"
)

// ReactionGroup is the per-emoji aggregate shown to a viewer.
type ReactionGroup struct {
	Emoji   string `json:"emoji"`
	Count   int    `json:"count"`
	Reacted bool   `json:"reacted"`
}

// SummarizeReactions groups reactions by emoji in first-seen order.
// Reacted is true when viewerID is among the group's users; viewerID 0 means no viewer.
func SummarizeReactions(reactions []Reaction, viewerID int64) []ReactionGroup {
	groups := make([]ReactionGroup, 0, len(reactions))
	index := make(map[string]int, len(reactions))
	for _, r := range reactions {
		i, ok := index[r.Emoji]
		if !ok {
			i = len(groups)
			index[r.Emoji] = i
			groups = append(groups, ReactionGroup{Emoji: r.Emoji})
		}
		groups[i].Count++
		if viewerID != 0 && r.UserID == viewerID {
			groups[i].Reacted = true
		}
	}
	return groups
}
