package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/roomchat/internal/logger"
	"github.com/roomchat/internal/model"
)

// EnsureUser returns the user named username, creating it with default
// profile and settings on first sight.
func (e *Engine) EnsureUser(ctx context.Context, username string) (*model.User, error) {
	defer logger.DeferLogDuration("chat.EnsureUser", time.Now())()
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("chat.EnsureUser: username required: %w", model.ErrInvalidInput)
	}
	if utf8.RuneCountInString(username) > model.MaxUsernameLength {
		return nil, fmt.Errorf("chat.EnsureUser: username longer than %d: %w", model.MaxUsernameLength, model.ErrInvalidInput)
	}
	u, err := e.store.GetUserByUsername(ctx, username)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("chat.EnsureUser: %w", err)
	}

	u = &model.User{
		Username:    username,
		DisplayName: username,
		AvatarRef:   model.DefaultAvatar,
		Settings:    model.DefaultSettings(),
		CreatedAt:   e.now(),
	}
	if err := e.store.CreateUser(ctx, u); err != nil {
		// Lost a creation race: the other writer's user is the answer.
		if errors.Is(err, model.ErrConflict) {
			return e.store.GetUserByUsername(ctx, username)
		}
		return nil, fmt.Errorf("chat.EnsureUser: %w", err)
	}
	e.mirror.PushUser(u.ID)
	logger.Infof("user created id=%d username=%s", u.ID, u.Username)
	return u, nil
}

// UpdateProfile changes display name and avatar. Empty values keep the current field.
func (e *Engine) UpdateProfile(ctx context.Context, userID int64, displayName, avatarRef string) (*model.User, error) {
	defer logger.DeferLogDuration("chat.UpdateProfile", time.Now())()
	displayName, avatarRef = strings.TrimSpace(displayName), strings.TrimSpace(avatarRef)
	if utf8.RuneCountInString(displayName) > model.MaxDisplayNameLength || utf8.RuneCountInString(avatarRef) > model.MaxAvatarRefLength {
		return nil, fmt.Errorf("chat.UpdateProfile: field too long: %w", model.ErrInvalidInput)
	}
	u, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("chat.UpdateProfile: %w", err)
	}
	if displayName != "" {
		u.DisplayName = displayName
	}
	if avatarRef != "" {
		u.AvatarRef = avatarRef
	}
	if err := e.store.UpdateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("chat.UpdateProfile: %w", err)
	}
	return u, nil
}

func (e *Engine) UpdateSettings(ctx context.Context, userID int64, s model.Settings) (*model.User, error) {
	defer logger.DeferLogDuration("chat.UpdateSettings", time.Now())()
	if s.Theme == "" {
		s.Theme = model.DefaultSettings().Theme
	}
	u, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("chat.UpdateSettings: %w", err)
	}
	u.Settings = s
	if err := e.store.UpdateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("chat.UpdateSettings: %w", err)
	}
	return u, nil
}

// Settings returns the user's settings, or the defaults for unknown users.
func (e *Engine) Settings(ctx context.Context, username string) (model.Settings, error) {
	u, err := e.store.GetUserByUsername(ctx, username)
	switch {
	case err == nil:
		return u.Settings, nil
	case errors.Is(err, model.ErrNotFound):
		return model.DefaultSettings(), nil
	default:
		return model.Settings{}, fmt.Errorf("chat.Settings: %w", err)
	}
}

func (e *Engine) User(ctx context.Context, id int64) (*model.User, error) {
	u, err := e.store.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("chat.User: %w", err)
	}
	return u, nil
}
