package presence

import (
	"context"
	"sync"
	"testing"

	"github.com/roomchat/internal/broadcast"
	"github.com/roomchat/internal/keylock"
	"github.com/stretchr/testify/require"
)

type capture struct {
	mu     sync.Mutex
	events []broadcast.Event
}

func (c *capture) Publish(_ context.Context, _ string, ev broadcast.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func newTracker() (*Tracker, *capture) {
	c := &capture{}
	return New(keylock.New(), c), c
}

func TestConnectDisconnect(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tr, pub := newTracker()

	snap := tr.Connect(ctx, "ABCD", "alice")
	req.Equal(1, snap.Members)
	req.Equal([]string{"alice"}, snap.Users)

	snap = tr.Connect(ctx, "ABCD", "bob")
	req.Equal(2, snap.Members)
	req.Equal([]string{"alice", "bob"}, snap.Users)

	snap, ok := tr.Disconnect(ctx, "ABCD", "alice")
	req.True(ok)
	req.Equal(1, snap.Members)
	req.Equal([]string{"bob"}, snap.Users)

	_, ok = tr.Disconnect(ctx, "ABCD", "bob")
	req.True(ok)
	req.Zero(tr.Rooms())
	req.Len(pub.events, 4)
	last := pub.events[3].Payload.(broadcast.PresencePayload)
	req.Zero(last.Members)
}

func TestDisconnectUnknownIsSilent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tr, pub := newTracker()

	_, ok := tr.Disconnect(ctx, "NONE", "ghost")
	req.False(ok)

	tr.Connect(ctx, "ABCD", "alice")
	_, ok = tr.Disconnect(ctx, "ABCD", "ghost")
	req.False(ok)
	req.Equal(1, tr.Snapshot("ABCD").Members)
	req.Len(pub.events, 1)
}

func TestSameNameTwoSessions(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tr, _ := newTracker()

	tr.Connect(ctx, "ABCD", "alice")
	tr.Connect(ctx, "ABCD", "alice")
	snap, _ := tr.Disconnect(ctx, "ABCD", "alice")
	req.Equal(1, snap.Members)
	req.Equal([]string{"alice"}, snap.Users)
}

func TestConcurrentConnects(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tr, _ := newTracker()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Connect(ctx, "ABCD", "alice")
		}()
	}
	wg.Wait()
	req.Equal(100, tr.Snapshot("ABCD").Members)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Disconnect(ctx, "ABCD", "alice")
		}()
	}
	wg.Wait()
	req.Zero(tr.Rooms())
}

func TestRemoveAndInit(t *testing.T) {
	req := require.New(t)
	tr, _ := newTracker()
	tr.InitRoom("ABCD")
	req.Equal(1, tr.Rooms())
	req.Zero(tr.Snapshot("ABCD").Members)
	tr.Remove("ABCD")
	req.Zero(tr.Rooms())
}
