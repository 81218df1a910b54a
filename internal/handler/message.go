package handler

import (
	"net/http"

	"github.com/roomchat/internal/chat"
)

type MessageHandler struct {
	engine *chat.Engine
}

func NewMessageHandler(engine *chat.Engine) *MessageHandler {
	return &MessageHandler{engine: engine}
}

type EditMessageRequest struct {
	Content string `json:"content" validate:"max=2000"`
}

type ReactRequest struct {
	Emoji string `json:"emoji" validate:"max=32"`
}

type readResponse struct {
	Changed bool `json:"changed"`
}

func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorOf(r)
	id, err := pathInt64(r, "id")
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	var req EditMessageRequest
	if err := decode(r, &req); err != nil {
		writeEngineError(w, r, err)
		return
	}
	view, err := h.engine.Edit(r.Context(), id, actor, req.Content)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorOf(r)
	id, err := pathInt64(r, "id")
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	view, err := h.engine.Delete(r.Context(), id, actor)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *MessageHandler) React(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorOf(r)
	id, err := pathInt64(r, "id")
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	var req ReactRequest
	if err := decode(r, &req); err != nil {
		writeEngineError(w, r, err)
		return
	}
	res, err := h.engine.React(r.Context(), id, actor, req.Emoji)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorOf(r)
	id, err := pathInt64(r, "id")
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	changed, err := h.engine.MarkRead(r.Context(), id, actor)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, readResponse{Changed: changed})
}
