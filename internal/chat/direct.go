package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roomchat/internal/broadcast"
	"github.com/roomchat/internal/logger"
	"github.com/roomchat/internal/metrics"
	"github.com/roomchat/internal/mirror"
	"github.com/roomchat/internal/model"
)

func (e *Engine) directView(ctx context.Context, d *model.DirectMessage) (model.DirectMessageView, error) {
	sender, err := e.store.GetUser(ctx, d.SenderID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return model.DirectMessageView{}, err
	}
	return model.DirectViewOf(d, sender), nil
}

// lockDirect loads a direct message, locks its pair and reloads it.
func (e *Engine) lockDirect(ctx context.Context, id int64) (*model.DirectMessage, func(), error) {
	d, err := e.store.GetDirectMessage(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	unlock := e.lockPair(d.SenderID, d.RecipientID)
	d, err = e.store.GetDirectMessage(ctx, id)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return d, unlock, nil
}

// SendDirect stores a private message and delivers it to both participants.
func (e *Engine) SendDirect(ctx context.Context, sender Actor, recipientID int64, raw string) (*model.DirectMessageView, error) {
	defer logger.DeferLogDuration("chat.SendDirect", time.Now())()
	raw, err := checkContent("chat.SendDirect", raw)
	if err != nil {
		return nil, err
	}
	if recipientID == 0 {
		return nil, fmt.Errorf("chat.SendDirect: recipient required: %w", model.ErrInvalidInput)
	}
	from, err := e.store.GetUser(ctx, sender.UserID)
	if err != nil {
		return nil, fmt.Errorf("chat.SendDirect sender: %w", err)
	}
	if _, err := e.store.GetUser(ctx, recipientID); err != nil {
		return nil, fmt.Errorf("chat.SendDirect recipient %d: %w", recipientID, err)
	}

	d := model.NewDirectMessage(from.ID, recipientID, raw, e.renderer.Render(raw), e.now())
	unlock := e.lockPair(from.ID, recipientID)
	err = e.store.CreateDirectMessage(ctx, d)
	unlock()
	if err != nil {
		return nil, fmt.Errorf("chat.SendDirect: %w", err)
	}

	metrics.DirectOps.WithLabelValues("send").Inc()
	e.mirror.PushDirectMessage(d.ID)
	v := model.DirectViewOf(d, from)
	e.publishPair(ctx, from.ID, recipientID, broadcast.EventDirectMessageCreated, v)
	return &v, nil
}

// EditDirect replaces the content of a direct message. Only the sender may edit.
func (e *Engine) EditDirect(ctx context.Context, id int64, actor Actor, raw string) (*model.DirectMessageView, error) {
	defer logger.DeferLogDuration("chat.EditDirect", time.Now())()
	raw, err := checkContent("chat.EditDirect", raw)
	if err != nil {
		return nil, err
	}
	d, unlock, err := e.lockDirect(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("chat.EditDirect %d: %w", id, err)
	}
	if d.SenderID != actor.UserID {
		unlock()
		return nil, fmt.Errorf("chat.EditDirect %d by %d: %w", id, actor.UserID, model.ErrUnauthorized)
	}
	if err := d.Edit(raw, e.renderer.Render(raw), e.now()); err != nil {
		unlock()
		return nil, fmt.Errorf("chat.EditDirect %d: %w", id, err)
	}
	err = e.store.UpdateDirectMessage(ctx, d)
	unlock()
	if err != nil {
		return nil, fmt.Errorf("chat.EditDirect %d: %w", id, err)
	}

	v, err := e.directView(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("chat.EditDirect %d view: %w", id, err)
	}
	metrics.DirectOps.WithLabelValues("edit").Inc()
	e.mirror.PushDirectMessage(d.ID, mirror.FieldContent, mirror.FieldRawContent, mirror.FieldEditedAt)
	e.publishPair(ctx, d.SenderID, d.RecipientID, broadcast.EventDirectMessageUpdated, v)
	return &v, nil
}

// DeleteDirect soft-deletes a direct message. Only the sender may delete;
// a repeated delete succeeds without a broadcast.
func (e *Engine) DeleteDirect(ctx context.Context, id int64, actor Actor) (*model.DirectMessageView, error) {
	defer logger.DeferLogDuration("chat.DeleteDirect", time.Now())()
	d, unlock, err := e.lockDirect(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("chat.DeleteDirect %d: %w", id, err)
	}
	if d.SenderID != actor.UserID {
		unlock()
		return nil, fmt.Errorf("chat.DeleteDirect %d by %d: %w", id, actor.UserID, model.ErrUnauthorized)
	}
	changed := d.Delete()
	if changed {
		err = e.store.UpdateDirectMessage(ctx, d)
	}
	unlock()
	if err != nil {
		return nil, fmt.Errorf("chat.DeleteDirect %d: %w", id, err)
	}

	v, err := e.directView(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("chat.DeleteDirect %d view: %w", id, err)
	}
	if !changed {
		return &v, nil
	}
	metrics.DirectOps.WithLabelValues("delete").Inc()
	e.mirror.PushDirectMessage(d.ID, mirror.FieldContent, mirror.FieldIsDeleted)
	e.publishPair(ctx, d.SenderID, d.RecipientID, broadcast.EventDirectMessageDeleted, v)
	return &v, nil
}

// MarkDirectRead sets the read bit of a direct message. Only the recipient may.
// It reports false when the message was already read.
func (e *Engine) MarkDirectRead(ctx context.Context, id int64, reader Actor) (bool, error) {
	defer logger.DeferLogDuration("chat.MarkDirectRead", time.Now())()
	d, unlock, err := e.lockDirect(ctx, id)
	if err != nil {
		return false, fmt.Errorf("chat.MarkDirectRead %d: %w", id, err)
	}
	if d.RecipientID != reader.UserID {
		unlock()
		return false, fmt.Errorf("chat.MarkDirectRead %d by %d: %w", id, reader.UserID, model.ErrUnauthorized)
	}
	if d.IsRead {
		unlock()
		return false, nil
	}
	d.IsRead = true
	err = e.store.UpdateDirectMessage(ctx, d)
	unlock()
	if err != nil {
		return false, fmt.Errorf("chat.MarkDirectRead %d: %w", id, err)
	}
	e.afterDirectRead(ctx, d)
	return true, nil
}

func (e *Engine) afterDirectRead(ctx context.Context, d *model.DirectMessage) {
	metrics.DirectOps.WithLabelValues("read").Inc()
	e.mirror.PushDirectMessage(d.ID, mirror.FieldIsRead)
	e.publish(ctx, broadcast.UserChannel(d.SenderID), broadcast.EventDirectMessageRead, broadcast.DirectMessageReadPayload{
		MessageID: d.ID,
		ReaderID:  d.RecipientID,
	})
}

// OpenConversation returns the non-deleted messages between viewer and other
// in time order, marking those addressed to viewer as read.
func (e *Engine) OpenConversation(ctx context.Context, viewer Actor, otherID int64) ([]model.DirectMessageView, error) {
	defer logger.DeferLogDuration("chat.OpenConversation", time.Now())()
	me, err := e.store.GetUser(ctx, viewer.UserID)
	if err != nil {
		return nil, fmt.Errorf("chat.OpenConversation viewer: %w", err)
	}
	other, err := e.store.GetUser(ctx, otherID)
	if err != nil {
		return nil, fmt.Errorf("chat.OpenConversation %d: %w", otherID, err)
	}

	unlock := e.lockPair(me.ID, other.ID)
	msgs, err := e.store.ListConversation(ctx, me.ID, other.ID)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("chat.OpenConversation: %w", err)
	}
	read := make([]*model.DirectMessage, 0, 8)
	for i := range msgs {
		d := &msgs[i]
		if d.RecipientID != me.ID || d.IsRead {
			continue
		}
		d.IsRead = true
		if err := e.store.UpdateDirectMessage(ctx, d); err != nil {
			logger.Errorf("chat.OpenConversation mark read id=%d: %v", d.ID, err)
			d.IsRead = false
			continue
		}
		read = append(read, d)
	}
	unlock()

	for _, d := range read {
		e.afterDirectRead(ctx, d)
	}

	users := map[int64]*model.User{me.ID: me, other.ID: other}
	views := make([]model.DirectMessageView, 0, len(msgs))
	for i := range msgs {
		views = append(views, model.DirectViewOf(&msgs[i], users[msgs[i].SenderID]))
	}
	return views, nil
}

// Conversations lists viewer's direct-message partners with unread counts.
func (e *Engine) Conversations(ctx context.Context, viewer Actor) ([]model.ConversationSummary, error) {
	defer logger.DeferLogDuration("chat.Conversations", time.Now())()
	partners, err := e.store.ListPartners(ctx, viewer.UserID)
	if err != nil {
		return nil, fmt.Errorf("chat.Conversations: %w", err)
	}
	out := make([]model.ConversationSummary, 0, len(partners))
	for _, pid := range partners {
		u, err := e.store.GetUser(ctx, pid)
		if errors.Is(err, model.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("chat.Conversations partner %d: %w", pid, err)
		}
		unread, err := e.store.ListUnread(ctx, viewer.UserID, pid)
		if err != nil {
			return nil, fmt.Errorf("chat.Conversations unread %d: %w", pid, err)
		}
		out = append(out, model.ConversationSummary{User: u.ToPublic(), Unread: len(unread)})
	}
	return out, nil
}
