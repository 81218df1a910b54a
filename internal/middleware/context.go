package middleware

import (
	"context"

	"github.com/roomchat/internal/model"
)

type contextKey string

const sessionKey contextKey = "session"

// WithSession stores the resolved session in ctx.
func WithSession(ctx context.Context, s *model.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// GetSession returns the session set by SessionAuth, or nil.
func GetSession(ctx context.Context) *model.Session {
	v, _ := ctx.Value(sessionKey).(*model.Session)
	return v
}
