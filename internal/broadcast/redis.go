package broadcast

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/roomchat/internal/logger"
	"github.com/roomchat/internal/metrics"
)

const redisPrefix = "roomchat:"

// RedisBus relays events through redis pub/sub so every instance delivers
// them to its own local subscribers.
type RedisBus struct {
	*Local
	rdb *redis.Client
}

var _ Bus = (*RedisBus)(nil)

func NewRedisBus(rdb *redis.Client) *RedisBus {
	return &RedisBus{Local: NewLocal(), rdb: rdb}
}

type wireEvent struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Publish sends ev to redis. If redis is unavailable the event is still
// delivered to this instance's subscribers.
func (b *RedisBus) Publish(ctx context.Context, channel string, ev Event) {
	metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Errorf("broadcast marshal %s: %v", ev.Type, err)
		return
	}
	if err := b.rdb.Publish(ctx, redisPrefix+channel, data).Err(); err != nil {
		logger.Errorf("broadcast redis publish channel=%s: %v", channel, err)
		b.deliver(channel, ev)
	}
}

// Run consumes the redis subscription until ctx is done.
func (b *RedisBus) Run(ctx context.Context) {
	sub := b.rdb.PSubscribe(ctx, redisPrefix+"*")
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			var we wireEvent
			if err := json.Unmarshal([]byte(m.Payload), &we); err != nil {
				logger.Errorf("broadcast redis decode channel=%s: %v", m.Channel, err)
				continue
			}
			b.deliver(strings.TrimPrefix(m.Channel, redisPrefix), Event{Type: we.Type, Payload: we.Payload})
		}
	}
}
