package mirror

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/roomchat/internal/model"
	"github.com/roomchat/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, store *memory.Store) (*model.User, *model.Room) {
	t.Helper()
	ctx := context.Background()
	u := &model.User{Username: "alice", DisplayName: "alice", AvatarRef: model.DefaultAvatar, Settings: model.DefaultSettings(), CreatedAt: t0}
	require.NoError(t, store.CreateUser(ctx, u))
	r := &model.Room{Code: "ABCD", Creator: "alice", IsPublic: true, CreatedAt: t0}
	require.NoError(t, store.CreateRoom(ctx, r))
	return u, r
}

func newMessage(t *testing.T, store *memory.Store, u *model.User, raw string) *model.Message {
	t.Helper()
	m := model.NewMessage("ABCD", u.Username, &u.ID, raw, "<p>"+raw+"</p>", t0)
	require.NoError(t, store.CreateMessage(context.Background(), m))
	return m
}

// drain stops the syncer so every queued push has completed.
func drain(s *Syncer) { s.Stop() }

func TestPushMessageInsertsAndLinks(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := memory.New()
	remote := NewMemoryRemote()
	u, _ := seed(t, store)
	m := newMessage(t, store, u, "hi")

	s := NewSyncer(store, remote, Config{Workers: 2, QueueSize: 16, Timeout: time.Second})
	s.Start(ctx)
	s.PushMessage(m.ID)
	drain(s)

	got, err := store.GetMessage(ctx, m.ID)
	req.NoError(err)
	req.NotEmpty(got.RemoteID)

	row, ok := remote.Get(TableMessages, got.RemoteID)
	req.True(ok)
	req.Equal(m.ID, row[FieldLocalID])
	req.Equal("hi", row[FieldRawContent])
	req.Equal("ABCD", row[FieldRoomID])
}

func TestPushEditSendsPartialUpdate(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := memory.New()
	remote := NewMemoryRemote()
	u, _ := seed(t, store)
	m := newMessage(t, store, u, "hi")

	s := NewSyncer(store, remote, Config{Workers: 1})
	s.Start(ctx)
	s.PushMessage(m.ID)

	cur, err := store.GetMessage(ctx, m.ID)
	req.NoError(err)
	req.NoError(cur.Edit("bye", "<p>bye</p>", t0.Add(time.Minute)))
	req.NoError(store.UpdateMessage(ctx, cur))
	s.PushMessage(m.ID, FieldContent, FieldRawContent, FieldEditedAt)
	drain(s)

	linked, err := store.GetMessage(ctx, m.ID)
	req.NoError(err)
	row, ok := remote.Get(TableMessages, linked.RemoteID)
	req.True(ok)
	req.Equal("bye", row[FieldRawContent])
	req.NotNil(row[FieldEditedAt])
	req.Equal(1, remote.Len(TableMessages))
}

func TestPushWithUnreachableRemoteKeepsLocal(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := memory.New()
	remote := NewMemoryRemote()
	remote.SetFailure(errors.New("connection refused"))
	u, _ := seed(t, store)
	m := newMessage(t, store, u, "hi")

	s := NewSyncer(store, remote, Config{Workers: 1})
	s.Start(ctx)
	s.PushMessage(m.ID)
	drain(s)

	got, err := store.GetMessage(ctx, m.ID)
	req.NoError(err)
	req.Empty(got.RemoteID)
	req.Equal("hi", got.RawContent)
}

func TestDisabledSyncerIsNoop(t *testing.T) {
	req := require.New(t)
	s := NewSyncer(memory.New(), nil, Config{})
	req.False(s.Enabled())
	s.Start(context.Background())
	s.PushUser(1)
	s.PushMessage(1, FieldContent)
	report, err := s.Pull(context.Background())
	req.NoError(err)
	req.Empty(report)
	s.Stop()
}

func TestPullLinksByLocalID(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := memory.New()
	remote := NewMemoryRemote()
	u, _ := seed(t, store)
	m := newMessage(t, store, u, "hi")

	remote.Put(TableMessages, "remote-1", Row{
		FieldLocalID:    m.ID,
		FieldRoomID:     "ABCD",
		FieldSender:     "alice",
		FieldContent:    "<p>hi</p>",
		FieldRawContent: "hi",
		FieldTimestamp:  formatTime(t0),
	})

	s := NewSyncer(store, remote, Config{})
	report, err := s.Pull(ctx)
	req.NoError(err)
	req.Equal(1, report[TableMessages].Linked)
	req.Zero(report[TableMessages].Imported)

	msgs, err := store.ListRoomMessages(ctx, "ABCD")
	req.NoError(err)
	req.Len(msgs, 1)
	req.Equal("remote-1", msgs[0].RemoteID)

	// A second pull finds the record by remote id and changes nothing.
	report, err = s.Pull(ctx)
	req.NoError(err)
	req.Equal(1, report[TableMessages].Existing)
	msgs, err = store.ListRoomMessages(ctx, "ABCD")
	req.NoError(err)
	req.Len(msgs, 1)
}

func TestPullImportsMissingRecords(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := memory.New()
	remote := NewMemoryRemote()

	remote.Put(TableUsers, "7", Row{FieldID: float64(7), FieldUsername: "carol", FieldDisplayName: "Carol", FieldCreatedAt: "not a time"})
	remote.Put(TableUsers, "8", Row{FieldID: float64(8), FieldUsername: "dave", FieldCreatedAt: formatTime(t0)})
	remote.Put(TableRooms, "WXYZ", Row{FieldID: "WXYZ", FieldCreator: "carol", FieldIsPublic: true, FieldCreatedAt: formatTime(t0)})
	remote.Put(TableMessages, "m-1", Row{
		FieldLocalID:    float64(99),
		FieldRoomID:     "WXYZ",
		FieldSender:     "carol",
		FieldUserID:     float64(7),
		FieldContent:    "secret",
		FieldRawContent: "secret",
		FieldIsDeleted:  true,
		FieldReadBy:     `["dave"]`,
		FieldTimestamp:  formatTime(t0),
	})
	remote.Put(TableMessages, "m-bad", Row{FieldRoomID: "NOPE", FieldSender: "carol"})
	remote.Put(TableDirectMessages, "d-1", Row{
		FieldSenderID:    float64(7),
		FieldRecipientID: float64(8),
		FieldContent:     "<p>yo</p>",
		FieldRawContent:  "yo",
		FieldIsRead:      false,
		FieldTimestamp:   formatTime(t0),
	})

	s := NewSyncer(store, remote, Config{})
	before := time.Now().UTC()
	report, err := s.Pull(ctx)
	req.NoError(err)
	req.Equal(2, report[TableUsers].Imported)
	req.Equal(1, report[TableRooms].Imported)
	req.Equal(1, report[TableMessages].Imported)
	req.Equal(1, report[TableMessages].Skipped)
	req.Equal(1, report[TableDirectMessages].Imported)

	carol, err := store.GetUser(ctx, 7)
	req.NoError(err)
	req.Equal("Carol", carol.DisplayName)
	req.False(carol.CreatedAt.Before(before))
	dave, err := store.GetUser(ctx, 8)
	req.NoError(err)
	req.Equal("dave", dave.DisplayName)

	// Imported ids advance the local sequence.
	eve := &model.User{Username: "eve"}
	req.NoError(store.CreateUser(ctx, eve))
	req.Greater(eve.ID, int64(8))

	msgs, err := store.ListRoomMessages(ctx, "WXYZ")
	req.NoError(err)
	req.Len(msgs, 1)
	req.True(msgs[0].IsDeleted())
	req.Equal(model.DeletedPlaceholder, msgs[0].Content)
	req.Equal("secret", msgs[0].RawContent)
	req.Equal([]string{"carol", "dave"}, msgs[0].ReadBy.Names())
	req.NotNil(msgs[0].UserID)

	conv, err := store.ListConversation(ctx, 7, 8)
	req.NoError(err)
	req.Len(conv, 1)
	req.Equal("d-1", conv[0].RemoteID)
}

func TestPullLocalIDGuardRejectsForeignRoom(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := memory.New()
	remote := NewMemoryRemote()
	u, _ := seed(t, store)
	m := newMessage(t, store, u, "mine")

	// Same local id, but written by another instance into another room.
	remote.Put(TableRooms, "QQQQ", Row{FieldID: "QQQQ", FieldCreator: "zed"})
	remote.Put(TableMessages, "other", Row{FieldLocalID: m.ID, FieldRoomID: "QQQQ", FieldSender: "zed", FieldRawContent: "theirs"})

	s := NewSyncer(store, remote, Config{})
	report, err := s.Pull(ctx)
	req.NoError(err)
	req.Equal(1, report[TableMessages].Imported)

	own, err := store.GetMessage(ctx, m.ID)
	req.NoError(err)
	req.Empty(own.RemoteID)
}

func TestPullSelectFailureIsReported(t *testing.T) {
	req := require.New(t)
	remote := NewMemoryRemote()
	remote.SetFailure(errors.New("unauthorized"))
	s := NewSyncer(memory.New(), remote, Config{})
	_, err := s.Pull(context.Background())
	req.Error(err)
}

func TestPushUserAndRoomUseLocalKeys(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := memory.New()
	remote := NewMemoryRemote()
	u, r := seed(t, store)

	s := NewSyncer(store, remote, Config{})
	s.Start(ctx)
	s.PushUser(u.ID)
	s.PushUser(u.ID)
	s.PushRoom(r.Code)
	drain(s)

	req.Equal(1, remote.Len(TableUsers))
	row, ok := remote.Get(TableRooms, "ABCD")
	req.True(ok)
	req.Equal("alice", row[FieldCreator])
}

func TestPushRoomDeletedTombstonesRow(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := memory.New()
	remote := NewMemoryRemote()
	_, r := seed(t, store)

	s := NewSyncer(store, remote, Config{Workers: 3})
	s.Start(ctx)
	s.PushRoom(r.Code)
	s.PushRoomDeleted(r.Code)
	s.PushRoomDeleted("NEVR")
	drain(s)

	row, ok := remote.Get(TableRooms, "ABCD")
	req.True(ok)
	req.Equal(true, row[FieldIsDeleted])
	req.Equal("alice", row[FieldCreator])
	_, ok = remote.Get(TableRooms, "NEVR")
	req.False(ok)
}

func TestPushRoomClearsTombstoneOfReusedCode(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := memory.New()
	remote := NewMemoryRemote()
	remote.Put(TableRooms, "ABCD", Row{FieldID: "ABCD", FieldCreator: "zed", FieldIsDeleted: true})
	_, r := seed(t, store)

	s := NewSyncer(store, remote, Config{})
	s.Start(ctx)
	s.PushRoom(r.Code)
	drain(s)

	row, ok := remote.Get(TableRooms, "ABCD")
	req.True(ok)
	req.Equal(false, row[FieldIsDeleted])
	req.Equal("alice", row[FieldCreator])
}

func TestPullSkipsDeletedRooms(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := memory.New()
	remote := NewMemoryRemote()

	remote.Put(TableUsers, "7", Row{FieldID: float64(7), FieldUsername: "carol", FieldCreatedAt: formatTime(t0)})
	remote.Put(TableRooms, "GONE", Row{FieldID: "GONE", FieldCreator: "carol", FieldIsDeleted: true})
	remote.Put(TableRooms, "LIVE", Row{FieldID: "LIVE", FieldCreator: "carol", FieldIsDeleted: false})
	remote.Put(TableMessages, "m-1", Row{FieldRoomID: "GONE", FieldSender: "carol", FieldRawContent: "old"})
	remote.Put(TableMessages, "m-2", Row{FieldRoomID: "LIVE", FieldSender: "carol", FieldRawContent: "new"})

	s := NewSyncer(store, remote, Config{})
	report, err := s.Pull(ctx)
	req.NoError(err)
	req.Equal(1, report[TableRooms].Imported)
	req.Equal(1, report[TableRooms].Deleted)
	req.Equal(1, report[TableMessages].Imported)
	req.Equal(1, report[TableMessages].Deleted)

	_, err = store.GetRoom(ctx, "GONE")
	req.ErrorIs(err, model.ErrNotFound)
	msgs, err := store.ListRoomMessages(ctx, "LIVE")
	req.NoError(err)
	req.Len(msgs, 1)
	req.Equal("new", msgs[0].RawContent)

	// A second pull still honors the tombstone.
	report, err = s.Pull(ctx)
	req.NoError(err)
	req.Equal(1, report[TableMessages].Deleted)
	req.Equal(1, report[TableMessages].Existing)
}
