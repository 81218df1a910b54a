package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/roomchat/internal/broadcast"
	"github.com/roomchat/internal/chat"
	"github.com/roomchat/internal/keylock"
	"github.com/roomchat/internal/model"
	"github.com/roomchat/internal/presence"
	"github.com/roomchat/internal/render"
	"github.com/roomchat/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

type hubFixture struct {
	engine *chat.Engine
	hub    *Hub
	room   *model.Room
	srv    *httptest.Server
	conns  chan *websocket.Conn
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	store := memory.New()
	bus := broadcast.NewLocal()
	locks := keylock.New()
	engine := chat.New(store, render.NewMarkdown(), presence.New(locks, bus), bus, nil, locks, chat.Options{
		NewCode: func() string { return "ABCD" },
	})
	room, err := engine.CreateRoom(context.Background(), "alice", true)
	require.NoError(t, err)

	f := &hubFixture{
		engine: engine,
		hub:    NewHub(engine, bus, Options{}),
		room:   room,
		conns:  make(chan *websocket.Conn, 4),
	}
	upgrader := websocket.Upgrader{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.conns <- conn
	}))
	t.Cleanup(f.srv.Close)
	return f
}

// dial returns the server side of a fresh connection and the peer.
func (f *hubFixture) dial(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()
	peer, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(f.srv.URL, "http"), nil)
	require.NoError(t, err)
	select {
	case conn := <-f.conns:
		return conn, peer
	case <-time.After(5 * time.Second):
		t.Fatal("no server connection")
		return nil, nil
	}
}

func (f *hubFixture) session(t *testing.T, name string) model.Session {
	t.Helper()
	u, err := f.engine.EnsureUser(context.Background(), name)
	require.NoError(t, err)
	return model.Session{ID: name + "-session", UserID: u.ID, Username: u.Username, RoomCode: f.room.Code}
}

func TestHubIgnoresClientUnregisteredBeforeRegister(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	alice := f.session(t, "alice")
	bob := f.session(t, "bob")

	// The peer drops before the hub ever sees the client: its unregister is
	// queued ahead of its register.
	conn, peer := f.dial(t)
	dead := NewClient(f.hub, conn, alice)
	ctx, cancel := context.WithCancel(context.Background())
	dead.Start(ctx, cancel)
	req.NoError(peer.Close())
	dead.Wait()

	hubCtx, hubCancel := context.WithCancel(context.Background())
	t.Cleanup(hubCancel)
	go f.hub.Run(hubCtx)
	f.hub.Register(dead)

	conn, peer = f.dial(t)
	defer peer.Close()
	live := NewClient(f.hub, conn, bob)
	liveCtx, liveCancel := context.WithCancel(context.Background())
	live.Start(liveCtx, liveCancel)
	f.hub.Register(live)

	// Registrations are handled in order, so once bob is present the dead
	// client has already been considered.
	req.Eventually(func() bool { return f.engine.Presence(f.room.Code).Members > 0 }, 5*time.Second, 10*time.Millisecond)
	req.Equal(1, f.hub.Sessions(bob.UserID))
	req.Equal(0, f.hub.Sessions(alice.UserID))
	snap := f.engine.Presence(f.room.Code)
	req.Equal(1, snap.Members)
	req.Equal([]string{"bob"}, snap.Users)
}

func TestHubRemovesClosedClient(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	alice := f.session(t, "alice")

	hubCtx, hubCancel := context.WithCancel(context.Background())
	t.Cleanup(hubCancel)
	go f.hub.Run(hubCtx)

	conn, peer := f.dial(t)
	c := NewClient(f.hub, conn, alice)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx, cancel)
	f.hub.Register(c)
	req.Eventually(func() bool { return f.engine.Presence(f.room.Code).Members == 1 }, 5*time.Second, 10*time.Millisecond)

	req.NoError(peer.Close())
	req.Eventually(func() bool { return f.hub.Sessions(alice.UserID) == 0 }, 5*time.Second, 10*time.Millisecond)
	req.Eventually(func() bool { return f.engine.Presence(f.room.Code).Members == 0 }, 5*time.Second, 10*time.Millisecond)
}
