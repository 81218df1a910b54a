package middleware

import (
	"errors"
	"net/http"

	"github.com/roomchat/internal/logger"
	"github.com/roomchat/internal/model"
	"github.com/roomchat/internal/storage"
)

// SessionID extracts the session id from the X-Session-Id header or the
// session_id query parameter (browsers cannot set headers on websocket dials).
func SessionID(r *http.Request) string {
	if id := r.Header.Get("X-Session-Id"); id != "" {
		return id
	}
	return r.URL.Query().Get("session_id")
}

// SessionAuth resolves the request's session from the session store and
// rejects requests without a live one.
func SessionAuth(store storage.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := SessionID(r)
			if sessionID == "" {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			session, err := store.GetSession(r.Context(), sessionID)
			if err != nil {
				if !errors.Is(err, model.ErrNotFound) {
					logger.Errorf("session middleware session_id=%s: %v", MaskSessionID(sessionID), err)
				}
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}
