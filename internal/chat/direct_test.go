package chat

import (
	"context"
	"testing"

	"github.com/roomchat/internal/broadcast"
	"github.com/roomchat/internal/model"
	"github.com/stretchr/testify/require"
)

func TestDirectMessageLifecycle(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	alice, bob := f.actor(t, "alice"), f.actor(t, "bob")

	aliceInbox, bobInbox := &inbox{}, &inbox{}
	f.bus.Subscribe(broadcast.UserChannel(alice.UserID), aliceInbox)
	f.bus.Subscribe(broadcast.UserChannel(bob.UserID), bobInbox)

	v, err := f.engine.SendDirect(ctx, alice, bob.UserID, "psst")
	req.NoError(err)
	req.Equal("alice", v.SenderUsername)
	req.False(v.IsRead)
	req.Len(aliceInbox.ofType(broadcast.EventDirectMessageCreated), 1)
	req.Len(bobInbox.ofType(broadcast.EventDirectMessageCreated), 1)

	convs, err := f.engine.Conversations(ctx, bob)
	req.NoError(err)
	req.Len(convs, 1)
	req.Equal("alice", convs[0].User.Username)
	req.Equal(1, convs[0].Unread)

	_, err = f.engine.MarkDirectRead(ctx, v.ID, alice)
	req.ErrorIs(err, model.ErrUnauthorized)

	changed, err := f.engine.MarkDirectRead(ctx, v.ID, bob)
	req.NoError(err)
	req.True(changed)
	changed, err = f.engine.MarkDirectRead(ctx, v.ID, bob)
	req.NoError(err)
	req.False(changed)
	req.Len(aliceInbox.ofType(broadcast.EventDirectMessageRead), 1)

	_, err = f.engine.EditDirect(ctx, v.ID, bob, "nope")
	req.ErrorIs(err, model.ErrUnauthorized)
	edited, err := f.engine.EditDirect(ctx, v.ID, alice, "**psst**")
	req.NoError(err)
	req.Contains(edited.Content, "<strong>psst</strong>")
	req.Len(bobInbox.ofType(broadcast.EventDirectMessageUpdated), 1)

	_, err = f.engine.DeleteDirect(ctx, v.ID, bob)
	req.ErrorIs(err, model.ErrUnauthorized)
	_, err = f.engine.DeleteDirect(ctx, v.ID, alice)
	req.NoError(err)
	_, err = f.engine.DeleteDirect(ctx, v.ID, alice)
	req.NoError(err)
	req.Len(bobInbox.ofType(broadcast.EventDirectMessageDeleted), 1)

	_, err = f.engine.EditDirect(ctx, v.ID, alice, "back")
	req.ErrorIs(err, model.ErrNotFound)

	conv, err := f.engine.OpenConversation(ctx, bob, alice.UserID)
	req.NoError(err)
	req.Empty(conv)
}

func TestSendDirectValidation(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	alice := f.actor(t, "alice")

	_, err := f.engine.SendDirect(ctx, alice, 404, "hi")
	req.ErrorIs(err, model.ErrNotFound)
	_, err = f.engine.SendDirect(ctx, alice, 0, "hi")
	req.ErrorIs(err, model.ErrInvalidInput)
	_, err = f.engine.SendDirect(ctx, alice, alice.UserID, "")
	req.ErrorIs(err, model.ErrInvalidInput)
}

func TestOpenConversationMarksRead(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	alice, bob := f.actor(t, "alice"), f.actor(t, "bob")

	_, err := f.engine.SendDirect(ctx, alice, bob.UserID, "one")
	req.NoError(err)
	_, err = f.engine.SendDirect(ctx, bob, alice.UserID, "two")
	req.NoError(err)
	_, err = f.engine.SendDirect(ctx, alice, bob.UserID, "three")
	req.NoError(err)

	aliceInbox := &inbox{}
	f.bus.Subscribe(broadcast.UserChannel(alice.UserID), aliceInbox)

	conv, err := f.engine.OpenConversation(ctx, bob, alice.UserID)
	req.NoError(err)
	req.Len(conv, 3)
	req.Equal("one", conv[0].RawContent)
	req.Equal("three", conv[2].RawContent)
	req.True(conv[0].IsRead)
	req.False(conv[1].IsRead)
	req.Len(aliceInbox.ofType(broadcast.EventDirectMessageRead), 2)

	convs, err := f.engine.Conversations(ctx, bob)
	req.NoError(err)
	req.Len(convs, 1)
	req.Zero(convs[0].Unread)

	_, err = f.engine.OpenConversation(ctx, bob, 999)
	req.ErrorIs(err, model.ErrNotFound)
}
