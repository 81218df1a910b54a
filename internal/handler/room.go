package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/roomchat/internal/chat"
	"github.com/roomchat/internal/logger"
	"github.com/roomchat/internal/middleware"
	"github.com/roomchat/internal/model"
	"github.com/roomchat/internal/storage"
)

type RoomHandler struct {
	engine     *chat.Engine
	sessions   storage.SessionStore
	sessionTTL time.Duration
}

func NewRoomHandler(engine *chat.Engine, sessions storage.SessionStore, sessionTTL time.Duration) *RoomHandler {
	return &RoomHandler{engine: engine, sessions: sessions, sessionTTL: sessionTTL}
}

type CreateRoomRequest struct {
	Name     string `json:"name" validate:"required,max=50"`
	IsPublic bool   `json:"is_public"`
}

type JoinRoomRequest struct {
	Name string `json:"name" validate:"required,max=50"`
}

type SendMessageRequest struct {
	Content string `json:"content" validate:"max=2000"`
}

// EntryResponse is returned on room creation and join. The session id
// authenticates later API calls and the websocket.
type EntryResponse struct {
	SessionID string           `json:"session_id"`
	Room      model.Room       `json:"room"`
	User      model.UserPublic `json:"user"`
}

func (h *RoomHandler) enter(w http.ResponseWriter, r *http.Request, user *model.User, room *model.Room, status int) {
	sess := model.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Username:  user.Username,
		RoomCode:  room.Code,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.sessions.PutSession(r.Context(), sess, h.sessionTTL); err != nil {
		writeEngineError(w, r, err)
		return
	}
	logger.Infof("session issued user=%s room=%s session_id=%s", user.Username, room.Code, middleware.MaskSessionID(sess.ID))
	writeJSON(w, status, EntryResponse{SessionID: sess.ID, Room: *room, User: user.ToPublic()})
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := decode(r, &req); err != nil {
		writeEngineError(w, r, err)
		return
	}
	user, err := h.engine.EnsureUser(r.Context(), req.Name)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	room, err := h.engine.CreateRoom(r.Context(), user.Username, req.IsPublic)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	h.enter(w, r, user, room, http.StatusCreated)
}

func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req JoinRoomRequest
	if err := decode(r, &req); err != nil {
		writeEngineError(w, r, err)
		return
	}
	room, err := h.engine.JoinRoom(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	user, err := h.engine.EnsureUser(r.Context(), req.Name)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	h.enter(w, r, user, room, http.StatusOK)
}

func (h *RoomHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.engine.ListPublicRooms(r.Context())
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorOf(r)
	if err := h.engine.DeleteRoom(r.Context(), chi.URLParam(r, "code"), actor.Username); err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// History returns the room's messages and marks them read for the caller.
func (h *RoomHandler) History(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorOf(r)
	views, err := h.engine.OpenRoom(r.Context(), chi.URLParam(r, "code"), actor)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *RoomHandler) Send(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorOf(r)
	var req SendMessageRequest
	if err := decode(r, &req); err != nil {
		writeEngineError(w, r, err)
		return
	}
	view, err := h.engine.Send(r.Context(), chi.URLParam(r, "code"), actor, req.Content)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *RoomHandler) Presence(w http.ResponseWriter, r *http.Request) {
	code := chat.NormalizeCode(chi.URLParam(r, "code"))
	if _, err := h.engine.JoinRoom(r.Context(), code); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Presence(code))
}

// Leave revokes the caller's session.
func (h *RoomHandler) Leave(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())
	if err := h.sessions.DeleteSession(r.Context(), s.ID); err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
