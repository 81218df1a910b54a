package handler

import (
	"net/http"

	"github.com/roomchat/internal/chat"
)

type DirectHandler struct {
	engine *chat.Engine
}

func NewDirectHandler(engine *chat.Engine) *DirectHandler {
	return &DirectHandler{engine: engine}
}

type DirectSendRequest struct {
	Content string `json:"content" validate:"max=2000"`
}

func (h *DirectHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorOf(r)
	list, err := h.engine.Conversations(r.Context(), actor)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *DirectHandler) Open(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorOf(r)
	other, err := pathInt64(r, "userId")
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	views, err := h.engine.OpenConversation(r.Context(), actor, other)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *DirectHandler) Send(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorOf(r)
	recipient, err := pathInt64(r, "userId")
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	var req DirectSendRequest
	if err := decode(r, &req); err != nil {
		writeEngineError(w, r, err)
		return
	}
	view, err := h.engine.SendDirect(r.Context(), actor, recipient, req.Content)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *DirectHandler) Edit(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorOf(r)
	id, err := pathInt64(r, "id")
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	var req DirectSendRequest
	if err := decode(r, &req); err != nil {
		writeEngineError(w, r, err)
		return
	}
	view, err := h.engine.EditDirect(r.Context(), id, actor, req.Content)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *DirectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorOf(r)
	id, err := pathInt64(r, "id")
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	view, err := h.engine.DeleteDirect(r.Context(), id, actor)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *DirectHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorOf(r)
	id, err := pathInt64(r, "id")
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	changed, err := h.engine.MarkDirectRead(r.Context(), id, actor)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, readResponse{Changed: changed})
}
