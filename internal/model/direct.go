package model

import "time"

// DirectMessage is a one-to-one message. IsRead is settable only by the recipient.
type DirectMessage struct {
	ID          int64     `json:"id"`
	SenderID    int64     `json:"sender_id"`
	RecipientID int64     `json:"recipient_id"`
	CreatedAt   time.Time `json:"created_at"`
	Body
	IsRead   bool   `json:"is_read"`
	RemoteID string `json:"-"`
}

func NewDirectMessage(senderID, recipientID int64, raw, html string, at time.Time) *DirectMessage {
	return &DirectMessage{
		SenderID:    senderID,
		RecipientID: recipientID,
		CreatedAt:   at,
		Body:        Body{Content: html, RawContent: raw, State: StateActive},
	}
}

// Involves reports whether userID is the sender or the recipient.
func (d *DirectMessage) Involves(userID int64) bool {
	return d.SenderID == userID || d.RecipientID == userID
}

// ConversationSummary is one entry of a user's direct-message inbox.
type ConversationSummary struct {
	User   UserPublic `json:"user"`
	Unread int        `json:"unread"`
}
