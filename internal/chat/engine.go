// Package chat is the room and direct-message engine: it validates and applies
// state transitions against the store, then fans the results out to the
// broadcast bus and the remote mirror.
package chat

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/roomchat/internal/broadcast"
	"github.com/roomchat/internal/keylock"
	"github.com/roomchat/internal/model"
	"github.com/roomchat/internal/presence"
	"github.com/roomchat/internal/render"
	"github.com/roomchat/internal/storage"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Mirror receives a push request after every local write. Implementations
// must return immediately; see mirror.Syncer.
type Mirror interface {
	PushUser(id int64)
	PushRoom(code string)
	PushRoomDeleted(code string)
	PushMessage(id int64, fields ...string)
	PushDirectMessage(id int64, fields ...string)
}

type noMirror struct{}

func (noMirror) PushUser(int64)                     {}
func (noMirror) PushRoom(string)                    {}
func (noMirror) PushRoomDeleted(string)             {}
func (noMirror) PushMessage(int64, ...string)       {}
func (noMirror) PushDirectMessage(int64, ...string) {}

// Actor is the identity an operation is performed as.
type Actor struct {
	UserID   int64
	Username string
}

type Options struct {
	// CodeLength is the room code length; zero means 4.
	CodeLength int
	// NewCode overrides the random room code source.
	NewCode func() string
	Now     func() time.Time
}

type Engine struct {
	store    storage.Store
	renderer render.Renderer
	presence *presence.Tracker
	pub      broadcast.Publisher
	mirror   Mirror
	locks    *keylock.Locker
	newCode  func() string
	now      func() time.Time
}

// New wires an engine. locks must be the same Locker the presence tracker
// uses so room messages and room presence share one mutual-exclusion domain.
func New(
	store storage.Store,
	renderer render.Renderer,
	tracker *presence.Tracker,
	pub broadcast.Publisher,
	mirror Mirror,
	locks *keylock.Locker,
	opts Options,
) *Engine {
	if mirror == nil {
		mirror = noMirror{}
	}
	e := &Engine{
		store:    store,
		renderer: renderer,
		presence: tracker,
		pub:      pub,
		mirror:   mirror,
		locks:    locks,
		newCode:  opts.NewCode,
		now:      opts.Now,
	}
	if e.newCode == nil {
		n := opts.CodeLength
		if n <= 0 {
			n = 4
		}
		e.newCode = func() string { return randomCode(n) }
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	return e
}

func randomCode(n int) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(codeAlphabet[rand.Intn(len(codeAlphabet))])
	}
	return b.String()
}

func (e *Engine) lockRoom(code string) func() {
	return e.locks.Lock(presence.LockKey(code))
}

// lockPair serializes direct messages between two users regardless of direction.
func (e *Engine) lockPair(a, b int64) func() {
	if a > b {
		a, b = b, a
	}
	return e.locks.Lock("dm:" + strconv.FormatInt(a, 10) + ":" + strconv.FormatInt(b, 10))
}

func (e *Engine) publish(ctx context.Context, channel string, typ broadcast.EventType, payload any) {
	if e.pub == nil {
		return
	}
	e.pub.Publish(ctx, channel, broadcast.Event{Type: typ, Payload: payload})
}

// publishPair sends ev to both participants' private channels.
func (e *Engine) publishPair(ctx context.Context, a, b int64, typ broadcast.EventType, payload any) {
	e.publish(ctx, broadcast.UserChannel(a), typ, payload)
	if b != a {
		e.publish(ctx, broadcast.UserChannel(b), typ, payload)
	}
}

// NormalizeCode upper-cases and trims a user-supplied room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// checkContent trims raw markdown and rejects empty or oversized content.
func checkContent(op, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%s: empty content: %w", op, model.ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(raw); n > model.MaxContentLength {
		return "", fmt.Errorf("%s: content has %d characters, max %d: %w", op, n, model.MaxContentLength, model.ErrInvalidInput)
	}
	return raw, nil
}
