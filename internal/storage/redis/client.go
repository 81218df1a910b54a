package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/roomchat/internal/model"
)

const sessionKeyPrefix = "session:"

// Client is the Redis-backed session store. The raw client is shared with the
// broadcast relay so one connection pool serves both.
type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

// Raw exposes the underlying client for pub/sub.
func (c *Client) Raw() *redis.Client { return c.cli }

func (c *Client) Close() error {
	return c.cli.Close()
}

// PutSession stores the session as JSON under session:{id} with ttl.
func (c *Client) PutSession(ctx context.Context, s model.Session, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("redis.PutSession marshal: %w", err)
	}
	return c.cli.Set(ctx, sessionKeyPrefix+s.ID, data, ttl).Err()
}

func (c *Client) GetSession(ctx context.Context, id string) (*model.Session, error) {
	val, err := c.cli.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session %q: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis.GetSession: %w", err)
	}
	var s model.Session
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, fmt.Errorf("redis.GetSession unmarshal: %w", err)
	}
	return &s, nil
}

func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.cli.Del(ctx, sessionKeyPrefix+id).Err()
}
