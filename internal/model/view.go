package model

import "time"

// MessageView is the client payload for a room message, relative to one viewer.
type MessageView struct {
	ID         int64           `json:"id"`
	RoomCode   string          `json:"room_code"`
	Content    string          `json:"content"`
	RawContent string          `json:"raw_content"`
	Sender     string          `json:"sender"`
	CreatedAt  time.Time       `json:"created_at"`
	EditedAt   *time.Time      `json:"edited_at"`
	IsDeleted  bool            `json:"is_deleted"`
	Reactions  []ReactionGroup `json:"reactions"`
	IsRead     bool            `json:"is_read"`
}

// ViewOf formats m for viewer (username, id). An empty viewer gets no relative flags.
func ViewOf(m *Message, reactions []Reaction, viewer string, viewerID int64) MessageView {
	return MessageView{
		ID:         m.ID,
		RoomCode:   m.RoomCode,
		Content:    m.Content,
		RawContent: m.RawContent,
		Sender:     m.Sender,
		CreatedAt:  m.CreatedAt,
		EditedAt:   m.EditedAt,
		IsDeleted:  m.IsDeleted(),
		Reactions:  SummarizeReactions(reactions, viewerID),
		IsRead:     viewer != "" && m.ReadBy.Has(viewer),
	}
}

type DirectMessageView struct {
	ID                int64      `json:"id"`
	Content           string     `json:"content"`
	RawContent        string     `json:"raw_content"`
	SenderID          int64      `json:"sender_id"`
	RecipientID       int64      `json:"recipient_id"`
	SenderUsername    string     `json:"sender_username"`
	SenderDisplayName string     `json:"sender_display_name"`
	SenderAvatar      string     `json:"sender_avatar"`
	CreatedAt         time.Time  `json:"created_at"`
	EditedAt          *time.Time `json:"edited_at"`
	IsDeleted         bool       `json:"is_deleted"`
	IsRead            bool       `json:"is_read"`
}

func DirectViewOf(d *DirectMessage, sender *User) DirectMessageView {
	v := DirectMessageView{
		ID:          d.ID,
		Content:     d.Content,
		RawContent:  d.RawContent,
		SenderID:    d.SenderID,
		RecipientID: d.RecipientID,
		CreatedAt:   d.CreatedAt,
		EditedAt:    d.EditedAt,
		IsDeleted:   d.IsDeleted(),
		IsRead:      d.IsRead,
	}
	if sender != nil {
		v.SenderUsername = sender.Username
		v.SenderDisplayName = sender.Name()
		v.SenderAvatar = sender.AvatarRef
	}
	return v
}
