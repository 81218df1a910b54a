// Package broadcast fans state-change events out to subscribers of a room
// or a user's private channel.
package broadcast

import (
	"strconv"
	"time"

	"github.com/roomchat/internal/model"
)

type EventType string

const (
	EventMessageCreated       EventType = "message_created"
	EventMessageUpdated       EventType = "message_updated"
	EventMessageDeleted       EventType = "message_deleted"
	EventReactionUpdated      EventType = "reaction_updated"
	EventReadReceipt          EventType = "read_receipt"
	EventPresenceChanged      EventType = "presence_changed"
	EventSystemNotice         EventType = "system_notice"
	EventRoomDeleted          EventType = "room_deleted"
	EventDirectMessageCreated EventType = "direct_message_created"
	EventDirectMessageRead    EventType = "direct_message_read"
	EventDirectMessageUpdated EventType = "direct_message_updated"
	EventDirectMessageDeleted EventType = "direct_message_deleted"
	EventError                EventType = "error"
)

// Event is the envelope delivered to subscribers and written to the wire.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

func RoomChannel(code string) string { return "room:" + code }

func UserChannel(userID int64) string { return "user:" + strconv.FormatInt(userID, 10) }

type ReactionUpdatedPayload struct {
	MessageID int64                `json:"message_id"`
	RoomCode  string               `json:"room_code"`
	User      string               `json:"user"`
	Emoji     string               `json:"emoji"`
	Action    model.ReactionAction `json:"action"`
	Message   model.MessageView    `json:"message"`
}

type ReadReceiptPayload struct {
	MessageID int64     `json:"message_id"`
	RoomCode  string    `json:"room_code"`
	User      string    `json:"user"`
	At        time.Time `json:"at"`
}

type PresencePayload struct {
	RoomCode string   `json:"room_code"`
	Members  int      `json:"members"`
	Users    []string `json:"users"`
}

type SystemNoticePayload struct {
	RoomCode string            `json:"room_code"`
	Name     string            `json:"name"`
	Text     string            `json:"text"`
	At       time.Time         `json:"at"`
	User     *model.UserPublic `json:"user,omitempty"`
}

type RoomDeletedPayload struct {
	RoomCode  string `json:"room_code"`
	DeletedBy string `json:"deleted_by"`
}

type DirectMessageReadPayload struct {
	MessageID int64 `json:"message_id"`
	ReaderID  int64 `json:"reader_id"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
