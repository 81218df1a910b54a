package broadcast

import (
	"context"
	"sync"

	"github.com/roomchat/internal/metrics"
)

// Subscriber receives events for the channels it joined. Deliver must not block.
type Subscriber interface {
	Deliver(ev Event)
}

type Publisher interface {
	Publish(ctx context.Context, channel string, ev Event)
}

type Bus interface {
	Publisher
	Subscribe(channel string, s Subscriber)
	Unsubscribe(channel string, s Subscriber)
}

// Local is an in-process Bus. Delivery is fire-and-forget.
type Local struct {
	mu   sync.RWMutex
	subs map[string]map[Subscriber]struct{}
}

var _ Bus = (*Local)(nil)

func NewLocal() *Local {
	return &Local{subs: make(map[string]map[Subscriber]struct{})}
}

func (l *Local) Subscribe(channel string, s Subscriber) {
	l.mu.Lock()
	defer l.mu.Unlock()
	set, ok := l.subs[channel]
	if !ok {
		set = make(map[Subscriber]struct{})
		l.subs[channel] = set
	}
	set[s] = struct{}{}
}

func (l *Local) Unsubscribe(channel string, s Subscriber) {
	l.mu.Lock()
	defer l.mu.Unlock()
	set, ok := l.subs[channel]
	if !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(l.subs, channel)
	}
}

func (l *Local) Publish(_ context.Context, channel string, ev Event) {
	metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()
	l.deliver(channel, ev)
}

func (l *Local) deliver(channel string, ev Event) {
	l.mu.RLock()
	set := l.subs[channel]
	targets := make([]Subscriber, 0, len(set))
	for s := range set {
		targets = append(targets, s)
	}
	l.mu.RUnlock()

	for _, s := range targets {
		s.Deliver(ev)
	}
}

// Subscribers reports how many subscribers a channel has.
func (l *Local) Subscribers(channel string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.subs[channel])
}
