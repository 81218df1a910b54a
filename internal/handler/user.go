package handler

import (
	"net/http"

	"github.com/roomchat/internal/chat"
	"github.com/roomchat/internal/model"
)

type UserHandler struct {
	engine *chat.Engine
}

func NewUserHandler(engine *chat.Engine) *UserHandler {
	return &UserHandler{engine: engine}
}

type UpdateProfileRequest struct {
	DisplayName string `json:"display_name" validate:"max=50"`
	AvatarRef   string `json:"avatar_ref" validate:"max=200"`
}

type UpdateSettingsRequest struct {
	Theme         string `json:"theme" validate:"omitempty,oneof=light dark"`
	Notifications bool   `json:"notifications"`
	Sounds        bool   `json:"sounds"`
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorOf(r)
	u, err := h.engine.User(r.Context(), actor.UserID)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorOf(r)
	var req UpdateProfileRequest
	if err := decode(r, &req); err != nil {
		writeEngineError(w, r, err)
		return
	}
	u, err := h.engine.UpdateProfile(r.Context(), actor.UserID, req.DisplayName, req.AvatarRef)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorOf(r)
	s, err := h.engine.Settings(r.Context(), actor.Username)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *UserHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorOf(r)
	var req UpdateSettingsRequest
	if err := decode(r, &req); err != nil {
		writeEngineError(w, r, err)
		return
	}
	u, err := h.engine.UpdateSettings(r.Context(), actor.UserID, model.Settings{
		Theme:         req.Theme,
		Notifications: req.Notifications,
		Sounds:        req.Sounds,
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u.Settings)
}
