package model

import "time"

// Session is the identity a connected client acts as.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	RoomCode  string    `json:"room_code"`
	CreatedAt time.Time `json:"created_at"`
}
