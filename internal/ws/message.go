package ws

// Action is a client request sent over the socket.
type Action string

const (
	ActionSend     Action = "send"
	ActionEdit     Action = "edit"
	ActionDelete   Action = "delete"
	ActionReact    Action = "react"
	ActionRead     Action = "read"
	ActionDMSend   Action = "dm_send"
	ActionDMEdit   Action = "dm_edit"
	ActionDMDelete Action = "dm_delete"
	ActionDMRead   Action = "dm_read"
)

// IncomingMessage is what the client sends to the server.
type IncomingMessage struct {
	Type        Action `json:"type"`
	Content     string `json:"content,omitempty"`
	MessageID   int64  `json:"message_id,omitempty"`
	Emoji       string `json:"emoji,omitempty"`
	RecipientID int64  `json:"recipient_id,omitempty"`
}
