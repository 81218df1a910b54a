package model

import "time"

const DefaultAvatar = "default.png"

// Column widths of the identity store, in characters.
const (
	MaxUsernameLength    = 50
	MaxDisplayNameLength = 50
	MaxAvatarRefLength   = 200
)

// Settings are per-user UI preferences, each independently toggleable.
type Settings struct {
	Theme         string `json:"theme"`
	Notifications bool   `json:"notifications"`
	Sounds        bool   `json:"sounds"`
}

func DefaultSettings() Settings {
	return Settings{Theme: "light", Notifications: true, Sounds: true}
}

type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarRef   string    `json:"avatar_ref"`
	Settings    Settings  `json:"settings"`
	CreatedAt   time.Time `json:"created_at"`
}

type UserPublic struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarRef   string `json:"avatar_ref"`
}

// Name is the display name, falling back to the username.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.Name(),
		AvatarRef:   u.AvatarRef,
	}
}
