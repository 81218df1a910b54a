package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roomchat/internal/broadcast"
	"github.com/roomchat/internal/chat"
	"github.com/roomchat/internal/logger"
	"github.com/roomchat/internal/metrics"
	"github.com/roomchat/internal/model"
)

type Options struct {
	MaxConns       int
	SendBuffer     int
	MaxMessageSize int64
}

func (o Options) withDefaults() Options {
	if o.MaxConns <= 0 {
		o.MaxConns = 10000
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 8192
	}
	return o
}

// Hub owns the set of connected clients. Each client subscribes to its room
// channel and its private user channel on the bus; the hub only tracks
// connections and dispatches client actions to the engine.
type Hub struct {
	mu         sync.RWMutex
	clients    map[int64]map[*Client]struct{}
	total      int
	opts       Options
	engine     *chat.Engine
	bus        broadcast.Bus
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(engine *chat.Engine, bus broadcast.Bus, opts Options) *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]struct{}),
		opts:       opts.withDefaults(),
		engine:     engine,
		bus:        bus,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(ctx, client)
		case client := <-h.unregister:
			h.removeClient(ctx, client)
		}
	}
}

func (h *Hub) shutdown() {
	// Collect all clients under the lock, do NOT perform I/O under mutex.
	h.mu.Lock()
	allClients := make([]*Client, 0, h.total)
	for _, clients := range h.clients {
		for c := range clients {
			allClients = append(allClients, c)
		}
	}
	h.clients = make(map[int64]map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()
	metrics.ConnectedSessions.Set(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, c := range allClients {
		h.detach(ctx, c)
		c.Close()
	}
	for _, c := range allClients {
		c.Wait()
	}
}

func (h *Hub) addClient(ctx context.Context, c *Client) {
	select {
	case <-c.done:
		return
	default:
	}
	h.mu.Lock()
	if h.total >= h.opts.MaxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%d", h.opts.MaxConns, c.session.UserID)
		c.Close()
		return
	}
	uid := c.session.UserID
	if _, ok := h.clients[uid]; !ok {
		h.clients[uid] = make(map[*Client]struct{})
	}
	h.clients[uid][c] = struct{}{}
	h.total++
	total := h.total
	h.mu.Unlock()
	metrics.ConnectedSessions.Set(float64(total))

	// Subscribe before announcing so the client sees its own presence update.
	h.bus.Subscribe(broadcast.RoomChannel(c.session.RoomCode), c)
	h.bus.Subscribe(broadcast.UserChannel(uid), c)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	m, _, err := h.engine.Connect(ctx, c.session)
	if err != nil {
		logger.Errorf("ws connect user=%d room=%s: %v", uid, c.session.RoomCode, err)
		h.sendError(c, err)
		c.Close()
		return
	}
	c.membership = m
}

func (h *Hub) removeClient(ctx context.Context, c *Client) {
	h.mu.Lock()
	clients, ok := h.clients[c.session.UserID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[c]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	h.total--
	if len(clients) == 0 {
		delete(h.clients, c.session.UserID)
	}
	total := h.total
	h.mu.Unlock()
	metrics.ConnectedSessions.Set(float64(total))

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	h.detach(ctx, c)

	// Network I/O outside the lock.
	c.Close()
}

// detach unsubscribes c and takes it out of room presence.
func (h *Hub) detach(ctx context.Context, c *Client) {
	h.bus.Unsubscribe(broadcast.RoomChannel(c.session.RoomCode), c)
	h.bus.Unsubscribe(broadcast.UserChannel(c.session.UserID), c)
	h.engine.Disconnect(ctx, c.membership)
	c.membership = nil
}

// HandleMessage dispatches one client action to the engine. Results reach
// clients through the bus; only failures are answered directly.
func (h *Hub) HandleMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.HandleMessage."+string(msg.Type), time.Now())()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	actor := c.actor()
	var err error
	switch msg.Type {
	case ActionSend:
		_, err = h.engine.Send(ctx, c.session.RoomCode, actor, msg.Content)
	case ActionEdit:
		_, err = h.engine.Edit(ctx, msg.MessageID, actor, msg.Content)
	case ActionDelete:
		_, err = h.engine.Delete(ctx, msg.MessageID, actor)
	case ActionReact:
		_, err = h.engine.React(ctx, msg.MessageID, actor, msg.Emoji)
	case ActionRead:
		_, err = h.engine.MarkRead(ctx, msg.MessageID, actor)
	case ActionDMSend:
		_, err = h.engine.SendDirect(ctx, actor, msg.RecipientID, msg.Content)
	case ActionDMEdit:
		_, err = h.engine.EditDirect(ctx, msg.MessageID, actor, msg.Content)
	case ActionDMDelete:
		_, err = h.engine.DeleteDirect(ctx, msg.MessageID, actor)
	case ActionDMRead:
		_, err = h.engine.MarkDirectRead(ctx, msg.MessageID, actor)
	default:
		err = fmt.Errorf("unknown event type %q: %w", msg.Type, model.ErrInvalidInput)
	}
	if err != nil {
		logger.Debugf("ws %s user=%d: %v", msg.Type, c.session.UserID, err)
		h.sendError(c, err)
	}
}

func (h *Hub) sendError(c *Client, err error) {
	msg := "internal error"
	if code := model.Code(err); code != "internal" {
		msg = err.Error()
	}
	h.sendToClient(c, broadcast.Event{Type: broadcast.EventError, Payload: broadcast.ErrorPayload{
		Code:    model.Code(err),
		Message: msg,
	}})
}

func (h *Hub) sendToClient(c *Client, ev broadcast.Event) {
	select {
	case c.send <- ev:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		metrics.DroppedDeliveries.Inc()
		logger.Errorf("ws send buffer full, closing slow client user=%d", c.session.UserID)
		c.Close()
	}
}

// Sessions reports how many connections userID currently has.
func (h *Hub) Sessions(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
