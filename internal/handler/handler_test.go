package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
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
	"github.com/roomchat/internal/ws"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	srv *httptest.Server
	hub *ws.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	bus := broadcast.NewLocal()
	locks := keylock.New()
	codes := []string{"ABCD", "WXYZ"}
	i := 0
	engine := chat.New(store, render.NewMarkdown(), presence.New(locks, bus), bus, nil, locks, chat.Options{
		NewCode: func() string { c := codes[i%len(codes)]; i++; return c },
	})
	hub := ws.NewHub(engine, bus, ws.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(NewRouter(Deps{
		Engine:      engine,
		Sessions:    memory.NewSessions(),
		SessionTTL:  time.Hour,
		Hub:         hub,
		CORSOrigins: "*",
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &testServer{srv: srv, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path, session string, body any) (int, []byte) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	r, err := http.NewRequest(method, s.srv.URL+path, rd)
	require.NoError(t, err)
	r.Header.Set("Content-Type", "application/json")
	if session != "" {
		r.Header.Set("X-Session-Id", session)
	}
	resp, err := http.DefaultClient.Do(r)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, buf.Bytes()
}

func (s *testServer) enter(t *testing.T, path, name string) EntryResponse {
	t.Helper()
	status, body := s.do(t, http.MethodPost, path, "", map[string]any{"name": name})
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, status, string(body))
	var out EntryResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestRoomEntryAndMessaging(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)

	alice := s.enter(t, "/api/rooms", "alice")
	req.Equal("ABCD", alice.Room.Code)
	req.Equal("alice", alice.Room.Creator)
	req.NotEmpty(alice.SessionID)

	bob := s.enter(t, "/api/rooms/abcd/join", "bob")
	req.Equal("ABCD", bob.Room.Code)

	status, _ := s.do(t, http.MethodPost, "/api/rooms/QQQQ/join", "", map[string]any{"name": "carol"})
	req.Equal(http.StatusNotFound, status)
	status, _ = s.do(t, http.MethodPost, "/api/rooms", "", map[string]any{"name": ""})
	req.Equal(http.StatusBadRequest, status)

	status, body := s.do(t, http.MethodPost, "/api/rooms/ABCD/messages", alice.SessionID, map[string]any{"content": "hello **bob**"})
	req.Equal(http.StatusCreated, status, string(body))
	var msg model.MessageView
	req.NoError(json.Unmarshal(body, &msg))
	req.Contains(msg.Content, "<strong>bob</strong>")
	id := strconv.FormatInt(msg.ID, 10)

	status, _ = s.do(t, http.MethodPut, "/api/messages/"+id, bob.SessionID, map[string]any{"content": "hijack"})
	req.Equal(http.StatusForbidden, status)

	status, body = s.do(t, http.MethodPost, "/api/messages/"+id+"/reactions", bob.SessionID, map[string]any{"emoji": "👍"})
	req.Equal(http.StatusOK, status)
	var react chat.ReactResult
	req.NoError(json.Unmarshal(body, &react))
	req.Equal(model.ReactionAdded, react.Action)

	status, body = s.do(t, http.MethodGet, "/api/rooms/ABCD/messages", bob.SessionID, nil)
	req.Equal(http.StatusOK, status)
	var history []model.MessageView
	req.NoError(json.Unmarshal(body, &history))
	req.Len(history, 1)
	req.True(history[0].IsRead)

	status, _ = s.do(t, http.MethodDelete, "/api/rooms/ABCD", bob.SessionID, nil)
	req.Equal(http.StatusForbidden, status)
	status, _ = s.do(t, http.MethodDelete, "/api/messages/"+id, alice.SessionID, nil)
	req.Equal(http.StatusOK, status)
	status, _ = s.do(t, http.MethodDelete, "/api/rooms/ABCD", alice.SessionID, nil)
	req.Equal(http.StatusNoContent, status)
}

func TestUnauthenticated(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)

	status, _ := s.do(t, http.MethodGet, "/api/me", "", nil)
	req.Equal(http.StatusUnauthorized, status)
	status, _ = s.do(t, http.MethodGet, "/api/me", "bogus", nil)
	req.Equal(http.StatusUnauthorized, status)

	status, body := s.do(t, http.MethodGet, "/health", "", nil)
	req.Equal(http.StatusOK, status)
	req.Equal("ok", string(body))
}

func TestProfileAndSettings(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)
	alice := s.enter(t, "/api/rooms", "alice")

	status, body := s.do(t, http.MethodGet, "/api/me/settings", alice.SessionID, nil)
	req.Equal(http.StatusOK, status)
	req.JSONEq(`{"theme":"light","notifications":true,"sounds":true}`, string(body))

	status, _ = s.do(t, http.MethodPut, "/api/me/settings", alice.SessionID, map[string]any{"theme": "neon"})
	req.Equal(http.StatusBadRequest, status)
	status, body = s.do(t, http.MethodPut, "/api/me/settings", alice.SessionID, map[string]any{"theme": "dark", "sounds": true})
	req.Equal(http.StatusOK, status)
	req.JSONEq(`{"theme":"dark","notifications":false,"sounds":true}`, string(body))

	status, body = s.do(t, http.MethodPut, "/api/me", alice.SessionID, map[string]any{"display_name": "Alice A."})
	req.Equal(http.StatusOK, status)
	var u model.User
	req.NoError(json.Unmarshal(body, &u))
	req.Equal("Alice A.", u.DisplayName)
	req.Equal(model.DefaultAvatar, u.AvatarRef)

	status, _ = s.do(t, http.MethodDelete, "/api/session", alice.SessionID, nil)
	req.Equal(http.StatusNoContent, status)
	status, _ = s.do(t, http.MethodGet, "/api/me", alice.SessionID, nil)
	req.Equal(http.StatusUnauthorized, status)
}

func TestDirectMessages(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)
	alice := s.enter(t, "/api/rooms", "alice")
	bob := s.enter(t, "/api/rooms/ABCD/join", "bob")
	bobID := strconv.FormatInt(bob.User.ID, 10)
	aliceID := strconv.FormatInt(alice.User.ID, 10)

	status, _ := s.do(t, http.MethodPost, "/api/dm/999", alice.SessionID, map[string]any{"content": "hi"})
	req.Equal(http.StatusNotFound, status)
	status, _ = s.do(t, http.MethodPost, "/api/dm/"+bobID, alice.SessionID, map[string]any{"content": "  "})
	req.Equal(http.StatusBadRequest, status)

	status, body := s.do(t, http.MethodPost, "/api/dm/"+bobID, alice.SessionID, map[string]any{"content": "psst"})
	req.Equal(http.StatusCreated, status)
	var dm model.DirectMessageView
	req.NoError(json.Unmarshal(body, &dm))
	req.False(dm.IsRead)

	status, body = s.do(t, http.MethodGet, "/api/dm", bob.SessionID, nil)
	req.Equal(http.StatusOK, status)
	var inbox []model.ConversationSummary
	req.NoError(json.Unmarshal(body, &inbox))
	req.Len(inbox, 1)
	req.Equal(1, inbox[0].Unread)

	status, _ = s.do(t, http.MethodGet, "/api/dm/"+aliceID, bob.SessionID, nil)
	req.Equal(http.StatusOK, status)
	status, body = s.do(t, http.MethodGet, "/api/dm", bob.SessionID, nil)
	req.Equal(http.StatusOK, status)
	req.NoError(json.Unmarshal(body, &inbox))
	req.Equal(0, inbox[0].Unread)

	id := strconv.FormatInt(dm.ID, 10)
	status, _ = s.do(t, http.MethodDelete, "/api/dm/messages/"+id, bob.SessionID, nil)
	req.Equal(http.StatusForbidden, status)
	status, _ = s.do(t, http.MethodDelete, "/api/dm/messages/"+id, alice.SessionID, nil)
	req.Equal(http.StatusOK, status)
	status, _ = s.do(t, http.MethodPost, "/api/dm/messages/abc/read", alice.SessionID, nil)
	req.Equal(http.StatusBadRequest, status)
}

func readEvent(t *testing.T, conn *websocket.Conn, want broadcast.EventType) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var ev struct {
			Type    broadcast.EventType `json:"type"`
			Payload json.RawMessage     `json:"payload"`
		}
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Type == want {
			return ev.Payload
		}
	}
}

func TestWebSocketSession(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)
	alice := s.enter(t, "/api/rooms", "alice")

	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws?session_id=" + alice.SessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	req.NoError(err)
	defer conn.Close()

	var snap broadcast.PresencePayload
	req.NoError(json.Unmarshal(readEvent(t, conn, broadcast.EventPresenceChanged), &snap))
	req.Equal("ABCD", snap.RoomCode)
	req.Equal(1, snap.Members)
	req.Equal([]string{"alice"}, snap.Users)

	req.NoError(conn.WriteJSON(ws.IncomingMessage{Type: ws.ActionSend, Content: "over the wire"}))
	var msg model.MessageView
	req.NoError(json.Unmarshal(readEvent(t, conn, broadcast.EventMessageCreated), &msg))
	req.Equal("alice", msg.Sender)
	req.Contains(msg.Content, "over the wire")

	req.NoError(conn.WriteJSON(ws.IncomingMessage{Type: ws.ActionEdit, MessageID: 999, Content: "x"}))
	var fail broadcast.ErrorPayload
	req.NoError(json.Unmarshal(readEvent(t, conn, broadcast.EventError), &fail))
	req.Equal("not_found", fail.Code)
}
