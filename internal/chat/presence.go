package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/roomchat/internal/broadcast"
	"github.com/roomchat/internal/logger"
	"github.com/roomchat/internal/model"
	"github.com/roomchat/internal/presence"
)

// Membership is one connected session's place in a room. Disconnect must be
// given the same value Connect returned.
type Membership struct {
	RoomCode string
	Name     string
	User     model.UserPublic
}

// Connect records a live session in its room and announces it.
// Sessions for rooms that no longer exist are refused.
func (e *Engine) Connect(ctx context.Context, sess model.Session) (*Membership, presence.Snapshot, error) {
	defer logger.DeferLogDuration("chat.Connect", time.Now())()
	code := NormalizeCode(sess.RoomCode)
	if _, err := e.store.GetRoom(ctx, code); err != nil {
		return nil, presence.Snapshot{}, fmt.Errorf("chat.Connect room %s: %w", code, err)
	}
	u, err := e.store.GetUser(ctx, sess.UserID)
	if err != nil {
		return nil, presence.Snapshot{}, fmt.Errorf("chat.Connect user %d: %w", sess.UserID, err)
	}

	m := &Membership{RoomCode: code, Name: u.Name(), User: u.ToPublic()}
	snap := e.presence.Connect(ctx, code, m.Name)
	e.notice(ctx, m, "has entered the room")
	return m, snap, nil
}

// Disconnect removes the session from presence and announces the departure.
// An unknown membership is ignored.
func (e *Engine) Disconnect(ctx context.Context, m *Membership) {
	if m == nil {
		return
	}
	if _, ok := e.presence.Disconnect(ctx, m.RoomCode, m.Name); !ok {
		return
	}
	e.notice(ctx, m, "has left the room")
}

func (e *Engine) notice(ctx context.Context, m *Membership, text string) {
	user := m.User
	e.publish(ctx, broadcast.RoomChannel(m.RoomCode), broadcast.EventSystemNotice, broadcast.SystemNoticePayload{
		RoomCode: m.RoomCode,
		Name:     m.Name,
		Text:     text,
		At:       e.now(),
		User:     &user,
	})
}

// Presence returns the current presence of a room.
func (e *Engine) Presence(code string) presence.Snapshot {
	return e.presence.Snapshot(NormalizeCode(code))
}
