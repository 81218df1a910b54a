package broadcast

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Deliver(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func TestLocalPublishReachesChannelSubscribers(t *testing.T) {
	req := require.New(t)
	bus := NewLocal()
	inRoom, elsewhere := &recorder{}, &recorder{}
	bus.Subscribe(RoomChannel("ABCD"), inRoom)
	bus.Subscribe(RoomChannel("WXYZ"), elsewhere)

	bus.Publish(context.Background(), RoomChannel("ABCD"), Event{Type: EventSystemNotice})

	req.Len(inRoom.events, 1)
	req.Equal(EventSystemNotice, inRoom.events[0].Type)
	req.Empty(elsewhere.events)
}

func TestLocalUnsubscribe(t *testing.T) {
	req := require.New(t)
	bus := NewLocal()
	r := &recorder{}
	bus.Subscribe(UserChannel(7), r)
	req.Equal(1, bus.Subscribers(UserChannel(7)))

	bus.Unsubscribe(UserChannel(7), r)
	bus.Publish(context.Background(), UserChannel(7), Event{Type: EventDirectMessageCreated})

	req.Empty(r.events)
	req.Zero(bus.Subscribers(UserChannel(7)))
}

func TestChannelNames(t *testing.T) {
	req := require.New(t)
	req.Equal("room:ABCD", RoomChannel("ABCD"))
	req.Equal("user:42", UserChannel(42))
}
