package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/roomchat/internal/broadcast"
	"github.com/roomchat/internal/logger"
	"github.com/roomchat/internal/metrics"
	"github.com/roomchat/internal/mirror"
	"github.com/roomchat/internal/model"
)

// ReactResult is the outcome of a reaction toggle together with the
// recomputed summary, relative to the reacting user.
type ReactResult struct {
	Action    model.ReactionAction  `json:"action"`
	Reactions []model.ReactionGroup `json:"reactions"`
	Message   model.MessageView     `json:"message"`
}

func (e *Engine) view(ctx context.Context, m *model.Message, viewer Actor) (model.MessageView, error) {
	reactions, err := e.store.ListReactions(ctx, m.ID)
	if err != nil {
		return model.MessageView{}, err
	}
	return model.ViewOf(m, reactions, viewer.Username, viewer.UserID), nil
}

// lockMessage loads message id, locks its room and reloads it under the lock.
// The caller must call the returned unlock.
func (e *Engine) lockMessage(ctx context.Context, id int64) (*model.Message, func(), error) {
	m, err := e.store.GetMessage(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	unlock := e.lockRoom(m.RoomCode)
	m, err = e.store.GetMessage(ctx, id)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return m, unlock, nil
}

// Send stores a new message from sender in room code and broadcasts it.
func (e *Engine) Send(ctx context.Context, code string, sender Actor, raw string) (*model.MessageView, error) {
	defer logger.DeferLogDuration("chat.Send", time.Now())()
	raw, err := checkContent("chat.Send", raw)
	if err != nil {
		return nil, err
	}
	code = NormalizeCode(code)

	unlock := e.lockRoom(code)
	if _, err := e.store.GetRoom(ctx, code); err != nil {
		unlock()
		return nil, fmt.Errorf("chat.Send room %s: %w", code, err)
	}
	var userID *int64
	if sender.UserID != 0 {
		id := sender.UserID
		userID = &id
	}
	m := model.NewMessage(code, sender.Username, userID, raw, e.renderer.Render(raw), e.now())
	if err := e.store.CreateMessage(ctx, m); err != nil {
		unlock()
		return nil, fmt.Errorf("chat.Send: %w", err)
	}
	unlock()

	metrics.MessageOps.WithLabelValues("send").Inc()
	e.mirror.PushMessage(m.ID)
	v := model.ViewOf(m, nil, sender.Username, sender.UserID)
	e.publish(ctx, broadcast.RoomChannel(code), broadcast.EventMessageCreated, v)
	return &v, nil
}

// Edit replaces the content of a message. Only its sender may edit, and a
// deleted message stays deleted.
func (e *Engine) Edit(ctx context.Context, id int64, actor Actor, raw string) (*model.MessageView, error) {
	defer logger.DeferLogDuration("chat.Edit", time.Now())()
	raw, err := checkContent("chat.Edit", raw)
	if err != nil {
		return nil, err
	}
	m, unlock, err := e.lockMessage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("chat.Edit %d: %w", id, err)
	}
	if m.Sender != actor.Username {
		unlock()
		return nil, fmt.Errorf("chat.Edit %d by %s: %w", id, actor.Username, model.ErrUnauthorized)
	}
	if err := m.Edit(raw, e.renderer.Render(raw), e.now()); err != nil {
		unlock()
		return nil, fmt.Errorf("chat.Edit %d: %w", id, err)
	}
	if err := e.store.UpdateMessage(ctx, m); err != nil {
		unlock()
		return nil, fmt.Errorf("chat.Edit %d: %w", id, err)
	}
	v, err := e.view(ctx, m, actor)
	unlock()
	if err != nil {
		return nil, fmt.Errorf("chat.Edit %d view: %w", id, err)
	}

	metrics.MessageOps.WithLabelValues("edit").Inc()
	e.mirror.PushMessage(m.ID, mirror.FieldContent, mirror.FieldRawContent, mirror.FieldEditedAt)
	e.publish(ctx, broadcast.RoomChannel(m.RoomCode), broadcast.EventMessageUpdated, v)
	return &v, nil
}

// Delete soft-deletes a message. The sender and the room creator may delete;
// deleting twice succeeds without a second broadcast.
func (e *Engine) Delete(ctx context.Context, id int64, actor Actor) (*model.MessageView, error) {
	defer logger.DeferLogDuration("chat.Delete", time.Now())()
	m, unlock, err := e.lockMessage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("chat.Delete %d: %w", id, err)
	}
	room, err := e.store.GetRoom(ctx, m.RoomCode)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("chat.Delete %d room: %w", id, err)
	}
	if m.Sender != actor.Username && room.Creator != actor.Username {
		unlock()
		return nil, fmt.Errorf("chat.Delete %d by %s: %w", id, actor.Username, model.ErrUnauthorized)
	}
	changed := m.Delete()
	if changed {
		if err := e.store.UpdateMessage(ctx, m); err != nil {
			unlock()
			return nil, fmt.Errorf("chat.Delete %d: %w", id, err)
		}
	}
	v, err := e.view(ctx, m, actor)
	unlock()
	if err != nil {
		return nil, fmt.Errorf("chat.Delete %d view: %w", id, err)
	}
	if !changed {
		return &v, nil
	}

	metrics.MessageOps.WithLabelValues("delete").Inc()
	e.mirror.PushMessage(m.ID, mirror.FieldContent, mirror.FieldIsDeleted)
	e.publish(ctx, broadcast.RoomChannel(m.RoomCode), broadcast.EventMessageDeleted, v)
	return &v, nil
}

// React toggles actor's emoji reaction on a message.
func (e *Engine) React(ctx context.Context, id int64, actor Actor, emoji string) (*ReactResult, error) {
	defer logger.DeferLogDuration("chat.React", time.Now())()
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return nil, fmt.Errorf("chat.React: emoji required: %w", model.ErrInvalidInput)
	}
	if actor.UserID == 0 {
		return nil, fmt.Errorf("chat.React: anonymous actor: %w", model.ErrUnauthorized)
	}
	m, unlock, err := e.lockMessage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("chat.React %d: %w", id, err)
	}
	if m.IsDeleted() {
		unlock()
		return nil, fmt.Errorf("chat.React %d: deleted: %w", id, model.ErrNotFound)
	}
	action, err := e.store.ToggleReaction(ctx, id, actor.UserID, emoji)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("chat.React %d: %w", id, err)
	}
	v, err := e.view(ctx, m, actor)
	unlock()
	if err != nil {
		return nil, fmt.Errorf("chat.React %d view: %w", id, err)
	}

	metrics.MessageOps.WithLabelValues("react").Inc()
	e.publish(ctx, broadcast.RoomChannel(m.RoomCode), broadcast.EventReactionUpdated, broadcast.ReactionUpdatedPayload{
		MessageID: id,
		RoomCode:  m.RoomCode,
		User:      actor.Username,
		Emoji:     emoji,
		Action:    action,
		Message:   v,
	})
	return &ReactResult{Action: action, Reactions: v.Reactions, Message: v}, nil
}

// MarkRead records that reader has seen a message. It reports false, and
// broadcasts nothing, when reader had already been recorded.
func (e *Engine) MarkRead(ctx context.Context, id int64, reader Actor) (bool, error) {
	defer logger.DeferLogDuration("chat.MarkRead", time.Now())()
	m, unlock, err := e.lockMessage(ctx, id)
	if err != nil {
		return false, fmt.Errorf("chat.MarkRead %d: %w", id, err)
	}
	if !m.MarkRead(reader.Username) {
		unlock()
		return false, nil
	}
	if err := e.store.UpdateMessage(ctx, m); err != nil {
		unlock()
		return false, fmt.Errorf("chat.MarkRead %d: %w", id, err)
	}
	unlock()

	e.afterRead(ctx, m, reader)
	return true, nil
}

func (e *Engine) afterRead(ctx context.Context, m *model.Message, reader Actor) {
	metrics.MessageOps.WithLabelValues("read").Inc()
	e.mirror.PushMessage(m.ID, mirror.FieldReadBy)
	e.publish(ctx, broadcast.RoomChannel(m.RoomCode), broadcast.EventReadReceipt, broadcast.ReadReceiptPayload{
		MessageID: m.ID,
		RoomCode:  m.RoomCode,
		User:      reader.Username,
		At:        e.now(),
	})
}

// OpenRoom returns the room history for viewer and marks every message from
// others as read by viewer.
func (e *Engine) OpenRoom(ctx context.Context, code string, viewer Actor) ([]model.MessageView, error) {
	defer logger.DeferLogDuration("chat.OpenRoom", time.Now())()
	code = NormalizeCode(code)

	unlock := e.lockRoom(code)
	if _, err := e.store.GetRoom(ctx, code); err != nil {
		unlock()
		return nil, fmt.Errorf("chat.OpenRoom %s: %w", code, err)
	}
	msgs, err := e.store.ListRoomMessages(ctx, code)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("chat.OpenRoom %s: %w", code, err)
	}
	read := make([]*model.Message, 0, len(msgs))
	for i := range msgs {
		m := &msgs[i]
		if m.Sender == viewer.Username || !m.MarkRead(viewer.Username) {
			continue
		}
		if err := e.store.UpdateMessage(ctx, m); err != nil {
			logger.Errorf("chat.OpenRoom mark read id=%d: %v", m.ID, err)
			continue
		}
		read = append(read, m)
	}
	unlock()

	for _, m := range read {
		e.afterRead(ctx, m, viewer)
	}

	views := make([]model.MessageView, 0, len(msgs))
	for i := range msgs {
		v, err := e.view(ctx, &msgs[i], viewer)
		if err != nil {
			return nil, fmt.Errorf("chat.OpenRoom %s view: %w", code, err)
		}
		views = append(views, v)
	}
	return views, nil
}
