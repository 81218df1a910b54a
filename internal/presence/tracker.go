// Package presence tracks who is connected to each room. State is in-memory
// only and starts empty on every process start.
package presence

import (
	"context"
	"sort"
	"sync"

	"github.com/roomchat/internal/broadcast"
	"github.com/roomchat/internal/keylock"
	"github.com/roomchat/internal/metrics"
)

// Snapshot is the presence of one room at a point in time.
type Snapshot struct {
	Members int      `json:"members"`
	Users   []string `json:"users"`
}

type entry struct {
	members int
	// names counts sessions per display name so two tabs of one user
	// keep the name present until both leave.
	names map[string]int
}

func (e *entry) snapshot() Snapshot {
	users := make([]string, 0, len(e.names))
	for n := range e.names {
		users = append(users, n)
	}
	sort.Strings(users)
	return Snapshot{Members: e.members, Users: users}
}

// Tracker owns the room -> presence map. Mutations of one room are serialized
// by the room lock shared with the chat engine.
type Tracker struct {
	mu    sync.Mutex
	rooms map[string]*entry
	locks *keylock.Locker
	pub   broadcast.Publisher
}

func New(locks *keylock.Locker, pub broadcast.Publisher) *Tracker {
	return &Tracker{
		rooms: make(map[string]*entry),
		locks: locks,
		pub:   pub,
	}
}

// LockKey is the keylock key guarding a room.
func LockKey(code string) string { return "room:" + code }

func (t *Tracker) get(code string, create bool) *entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.rooms[code]
	if !ok && create {
		e = &entry{names: make(map[string]int)}
		t.rooms[code] = e
		metrics.PresentRooms.Set(float64(len(t.rooms)))
	}
	return e
}

func (t *Tracker) drop(code string) {
	t.mu.Lock()
	delete(t.rooms, code)
	metrics.PresentRooms.Set(float64(len(t.rooms)))
	t.mu.Unlock()
}

// InitRoom creates an empty entry for a freshly created room.
func (t *Tracker) InitRoom(code string) {
	unlock := t.locks.Lock(LockKey(code))
	defer unlock()
	t.get(code, true)
}

// Connect adds one session for name and broadcasts the new presence.
func (t *Tracker) Connect(ctx context.Context, code, name string) Snapshot {
	unlock := t.locks.Lock(LockKey(code))
	defer unlock()

	e := t.get(code, true)
	e.members++
	e.names[name]++
	snap := e.snapshot()
	t.publish(ctx, code, snap)
	return snap
}

// Disconnect removes one session for name. It reports false, and broadcasts
// nothing, when name had no session in the room.
func (t *Tracker) Disconnect(ctx context.Context, code, name string) (Snapshot, bool) {
	unlock := t.locks.Lock(LockKey(code))
	defer unlock()

	e := t.get(code, false)
	if e == nil || e.names[name] == 0 {
		return Snapshot{}, false
	}
	e.members--
	if e.names[name]--; e.names[name] <= 0 {
		delete(e.names, name)
	}
	snap := e.snapshot()
	if e.members <= 0 {
		t.drop(code)
		snap = Snapshot{Users: []string{}}
	}
	t.publish(ctx, code, snap)
	return snap, true
}

func (t *Tracker) Snapshot(code string) Snapshot {
	unlock := t.locks.Lock(LockKey(code))
	defer unlock()
	e := t.get(code, false)
	if e == nil {
		return Snapshot{Users: []string{}}
	}
	return e.snapshot()
}

// Remove forgets the room entirely, as when the room is deleted.
func (t *Tracker) Remove(code string) {
	unlock := t.locks.Lock(LockKey(code))
	defer unlock()
	t.drop(code)
}

// Rooms reports how many rooms have an entry.
func (t *Tracker) Rooms() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rooms)
}

func (t *Tracker) publish(ctx context.Context, code string, snap Snapshot) {
	if t.pub == nil {
		return
	}
	t.pub.Publish(ctx, broadcast.RoomChannel(code), broadcast.Event{
		Type: broadcast.EventPresenceChanged,
		Payload: broadcast.PresencePayload{
			RoomCode: code,
			Members:  snap.Members,
			Users:    snap.Users,
		},
	})
}
