package model

import "time"

// Room is a code-addressed channel. Code is the primary key.
type Room struct {
	Code      string    `json:"code"`
	Creator   string    `json:"creator"`
	IsPublic  bool      `json:"is_public"`
	CreatedAt time.Time `json:"created_at"`
}

type RoomSummary struct {
	Code    string `json:"code"`
	Creator string `json:"creator"`
}
