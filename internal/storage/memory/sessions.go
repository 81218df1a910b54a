package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roomchat/internal/model"
)

type sessionItem struct {
	val model.Session
	exp time.Time
}

// Sessions is the in-process session store used with -dev or when Redis is disabled.
type Sessions struct {
	mu    sync.RWMutex
	items map[string]sessionItem
}

func NewSessions() *Sessions {
	return &Sessions{items: make(map[string]sessionItem)}
}

func (s *Sessions) Close() error { return nil }

func (s *Sessions) PutSession(ctx context.Context, sess model.Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[sess.ID] = sessionItem{val: sess, exp: time.Now().Add(ttl)}
	return nil
}

func (s *Sessions) GetSession(ctx context.Context, id string) (*model.Session, error) {
	s.mu.RLock()
	v, ok := s.items[id]
	s.mu.RUnlock()
	if !ok || time.Now().After(v.exp) {
		return nil, fmt.Errorf("session %q: %w", id, model.ErrNotFound)
	}
	sess := v.val
	return &sess, nil
}

func (s *Sessions) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}
