package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/roomchat/internal/broadcast"
	"github.com/roomchat/internal/logger"
	"github.com/roomchat/internal/model"
	"github.com/samber/lo"
)

// CreateRoom allocates a fresh code by rejection sampling and persists the room.
// The loop has no upper bound: it only spins forever if every code is taken,
// which 26^4 codes make practically unreachable.
func (e *Engine) CreateRoom(ctx context.Context, creator string, isPublic bool) (*model.Room, error) {
	defer logger.DeferLogDuration("chat.CreateRoom", time.Now())()
	creator = strings.TrimSpace(creator)
	if creator == "" {
		return nil, fmt.Errorf("chat.CreateRoom: creator required: %w", model.ErrInvalidInput)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("chat.CreateRoom: %w", err)
		}
		code := e.newCode()
		if _, err := e.store.GetRoom(ctx, code); err == nil {
			continue
		} else if !errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("chat.CreateRoom: %w", err)
		}

		room := &model.Room{Code: code, Creator: creator, IsPublic: isPublic, CreatedAt: e.now()}
		err := e.store.CreateRoom(ctx, room)
		if errors.Is(err, model.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("chat.CreateRoom: %w", err)
		}

		if e.presence != nil {
			e.presence.InitRoom(code)
		}
		e.mirror.PushRoom(code)
		logger.Infof("room created code=%s creator=%s public=%t", code, creator, isPublic)
		return room, nil
	}
}

// JoinRoom resolves a code to its room.
func (e *Engine) JoinRoom(ctx context.Context, code string) (*model.Room, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, fmt.Errorf("chat.JoinRoom: code required: %w", model.ErrInvalidInput)
	}
	room, err := e.store.GetRoom(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("chat.JoinRoom %s: %w", code, err)
	}
	return room, nil
}

// DeleteRoom removes a room with its messages. Only the creator may do it.
func (e *Engine) DeleteRoom(ctx context.Context, code, requester string) error {
	defer logger.DeferLogDuration("chat.DeleteRoom", time.Now())()
	code = NormalizeCode(code)
	unlock := e.lockRoom(code)
	room, err := e.store.GetRoom(ctx, code)
	if err != nil {
		unlock()
		return fmt.Errorf("chat.DeleteRoom %s: %w", code, err)
	}
	if room.Creator != requester {
		unlock()
		return fmt.Errorf("chat.DeleteRoom %s by %s: %w", code, requester, model.ErrUnauthorized)
	}
	if err := e.store.DeleteRoom(ctx, code); err != nil {
		unlock()
		return fmt.Errorf("chat.DeleteRoom %s: %w", code, err)
	}
	e.mirror.PushRoomDeleted(code)
	unlock()

	e.publish(ctx, broadcast.RoomChannel(code), broadcast.EventRoomDeleted,
		broadcast.RoomDeletedPayload{RoomCode: code, DeletedBy: requester})
	if e.presence != nil {
		e.presence.Remove(code)
	}
	logger.Infof("room deleted code=%s by=%s", code, requester)
	return nil
}

// ListPublicRooms returns public rooms sorted by code.
func (e *Engine) ListPublicRooms(ctx context.Context) ([]model.RoomSummary, error) {
	rooms, err := e.store.ListPublicRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("chat.ListPublicRooms: %w", err)
	}
	out := lo.Map(rooms, func(r model.Room, _ int) model.RoomSummary {
		return model.RoomSummary{Code: r.Code, Creator: r.Creator}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}
