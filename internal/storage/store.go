// Package storage defines the durable store and session store contracts.
// Implementations: repository (Postgres via pgx), memory (tests and -dev without a database),
// redis (sessions only).
package storage

import (
	"context"
	"time"

	"github.com/roomchat/internal/model"
)

// Users is the Identity Store. Username is unique.
type Users interface {
	// CreateUser assigns an id when u.ID is zero; an explicit id is kept (remote import).
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	UpdateUser(ctx context.Context, u *model.User) error
	ListUsers(ctx context.Context) ([]model.User, error)
}

// Rooms is the Room Registry. Code is unique; CreateRoom returns model.ErrConflict on collision.
type Rooms interface {
	CreateRoom(ctx context.Context, r *model.Room) error
	GetRoom(ctx context.Context, code string) (*model.Room, error)
	// DeleteRoom removes the room with its messages and their reactions.
	DeleteRoom(ctx context.Context, code string) error
	ListPublicRooms(ctx context.Context) ([]model.Room, error)
}

type Messages interface {
	CreateMessage(ctx context.Context, m *model.Message) error
	GetMessage(ctx context.Context, id int64) (*model.Message, error)
	GetMessageByRemoteID(ctx context.Context, remoteID string) (*model.Message, error)
	// ListRoomMessages returns messages in creation order.
	ListRoomMessages(ctx context.Context, code string) ([]model.Message, error)
	// UpdateMessage persists content, raw content, edited_at, deletion and read_by.
	UpdateMessage(ctx context.Context, m *model.Message) error
	SetMessageRemoteID(ctx context.Context, id int64, remoteID string) error
}

type Reactions interface {
	// ToggleReaction adds the (message,user,emoji) reaction if absent or removes it if present.
	ToggleReaction(ctx context.Context, messageID, userID int64, emoji string) (model.ReactionAction, error)
	ListReactions(ctx context.Context, messageID int64) ([]model.Reaction, error)
}

type DirectMessages interface {
	CreateDirectMessage(ctx context.Context, d *model.DirectMessage) error
	GetDirectMessage(ctx context.Context, id int64) (*model.DirectMessage, error)
	GetDirectMessageByRemoteID(ctx context.Context, remoteID string) (*model.DirectMessage, error)
	UpdateDirectMessage(ctx context.Context, d *model.DirectMessage) error
	SetDirectMessageRemoteID(ctx context.Context, id int64, remoteID string) error
	// ListConversation returns non-deleted messages between a and b in time order.
	ListConversation(ctx context.Context, a, b int64) ([]model.DirectMessage, error)
	// ListUnread returns unread messages from sender to recipient.
	ListUnread(ctx context.Context, recipientID, senderID int64) ([]model.DirectMessage, error)
	// ListPartners returns ids of users that exchanged messages with userID.
	ListPartners(ctx context.Context, userID int64) ([]int64, error)
}

// Store is the local durable store: the source of truth.
type Store interface {
	Users
	Rooms
	Messages
	Reactions
	DirectMessages
}

// SessionStore resolves session ids to identities.
// Implementations: redis.Client, memory.Sessions.
type SessionStore interface {
	PutSession(ctx context.Context, s model.Session, ttl time.Duration) error
	// GetSession returns model.ErrNotFound for unknown or expired ids.
	GetSession(ctx context.Context, id string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
	Close() error
}
