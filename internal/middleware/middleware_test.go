package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/roomchat/internal/model"
	"github.com/roomchat/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	if s := GetSession(r.Context()); s != nil {
		w.Header().Set("X-User", s.Username)
	}
	w.WriteHeader(http.StatusNoContent)
}

func TestSessionAuth(t *testing.T) {
	req := require.New(t)
	store := memory.NewSessions()
	req.NoError(store.PutSession(context.Background(), model.Session{ID: "sess-1", UserID: 3, Username: "alice", RoomCode: "ABCD"}, time.Hour))
	h := SessionAuth(store)(http.HandlerFunc(okHandler))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	req.Equal(http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	r.Header.Set("X-Session-Id", "nope")
	h.ServeHTTP(rec, r)
	req.Equal(http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?session_id=sess-1", nil))
	req.Equal(http.StatusNoContent, rec.Code)
	req.Equal("alice", rec.Header().Get("X-User"))
}

func TestRateLimit(t *testing.T) {
	req := require.New(t)
	h := RateLimit(1, 2)(http.HandlerFunc(okHandler))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
		r.RemoteAddr = "10.0.0.1:5555"
		h.ServeHTTP(rec, r)
		codes = append(codes, rec.Code)
	}
	req.Equal([]int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
	r.RemoteAddr = "10.0.0.2:5555"
	h.ServeHTTP(rec, r)
	req.Equal(http.StatusNoContent, rec.Code)
}

func TestRecoverJSON(t *testing.T) {
	req := require.New(t)
	h := RecoverJSON(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	req.Equal(http.StatusInternalServerError, rec.Code)
	req.JSONEq(`{"error":"internal server error"}`, rec.Body.String())
}

func TestMaskSessionID(t *testing.T) {
	req := require.New(t)
	req.Equal("****", MaskSessionID("abc"))
	req.Equal("abcd***", MaskSessionID("abcdefgh"))
}
