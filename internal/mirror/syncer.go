package mirror

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/roomchat/internal/logger"
	"github.com/roomchat/internal/metrics"
	"github.com/roomchat/internal/model"
	"github.com/roomchat/internal/storage"
)

type Config struct {
	Workers   int
	QueueSize int
	// Timeout bounds every remote call made by a push.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	return c
}

type jobKind int

const (
	kindUser jobKind = iota
	kindRoom
	kindRoomDeleted
	kindMessage
	kindDirect
)

func (k jobKind) table() string {
	switch k {
	case kindUser:
		return TableUsers
	case kindRoom, kindRoomDeleted:
		return TableRooms
	case kindMessage:
		return TableMessages
	default:
		return TableDirectMessages
	}
}

type job struct {
	kind   jobKind
	key    string
	fields []string
}

// Syncer pushes local writes to the remote mirror on a bounded set of
// workers. Jobs for one record always land on the same worker, so a
// create and its later edits are applied in order. Remote failures are
// logged and counted, never returned to the writer.
type Syncer struct {
	store  storage.Store
	remote Remote
	cfg    Config
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
	queues []chan job
	wg     sync.WaitGroup
}

// NewSyncer returns a Syncer. A nil remote yields a disabled Syncer whose
// pushes and pulls do nothing.
func NewSyncer(store storage.Store, remote Remote, cfg Config) *Syncer {
	cfg = cfg.withDefaults()
	s := &Syncer{
		store:  store,
		remote: remote,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
	if remote != nil {
		per := cfg.QueueSize / cfg.Workers
		if per < 1 {
			per = 1
		}
		s.queues = make([]chan job, cfg.Workers)
		for i := range s.queues {
			s.queues[i] = make(chan job, per)
		}
	}
	return s
}

func (s *Syncer) Enabled() bool { return s.remote != nil }

// Start launches the push workers. Jobs enqueued before Start wait in the queue.
func (s *Syncer) Start(ctx context.Context) {
	for i, q := range s.queues {
		s.wg.Add(1)
		go s.worker(ctx, i, q)
	}
}

// Stop drains queued pushes and waits for workers to finish.
func (s *Syncer) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, q := range s.queues {
		close(q)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Syncer) PushUser(id int64) {
	s.enqueue(job{kind: kindUser, key: strconv.FormatInt(id, 10)})
}

func (s *Syncer) PushRoom(code string) {
	s.enqueue(job{kind: kindRoom, key: code})
}

// PushRoomDeleted marks the mirrored room as deleted so a later pull does
// not bring it or its messages back.
func (s *Syncer) PushRoomDeleted(code string) {
	s.enqueue(job{kind: kindRoomDeleted, key: code})
}

// PushMessage mirrors a room message. With no fields, or when the message was
// never mirrored, the full record is inserted; otherwise only fields are updated.
func (s *Syncer) PushMessage(id int64, fields ...string) {
	s.enqueue(job{kind: kindMessage, key: strconv.FormatInt(id, 10), fields: fields})
}

func (s *Syncer) PushDirectMessage(id int64, fields ...string) {
	s.enqueue(job{kind: kindDirect, key: strconv.FormatInt(id, 10), fields: fields})
}

func (s *Syncer) enqueue(j job) {
	if s.remote == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	q := s.queues[xxhash.Sum64String(j.kind.table()+":"+j.key)%uint64(len(s.queues))]
	select {
	case q <- j:
	default:
		metrics.MirrorDropped.Inc()
		logger.Warnf("mirror queue full, dropping %s %s", j.kind.table(), j.key)
	}
}

func (s *Syncer) worker(ctx context.Context, n int, q <-chan job) {
	defer s.wg.Done()
	for j := range q {
		if err := s.push(ctx, j); err != nil {
			metrics.MirrorPushes.WithLabelValues(j.kind.table(), "error").Inc()
			logger.Errorf("mirror worker=%d push %s %s: %v", n, j.kind.table(), j.key, err)
			continue
		}
		metrics.MirrorPushes.WithLabelValues(j.kind.table(), "ok").Inc()
	}
}

func (s *Syncer) push(ctx context.Context, j job) error {
	defer logger.DeferLogDuration("mirror.push."+j.kind.table(), time.Now())()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Timeout)
	defer cancel()

	switch j.kind {
	case kindUser:
		id, _ := strconv.ParseInt(j.key, 10, 64)
		u, err := s.store.GetUser(ctx, id)
		if err != nil {
			return err
		}
		_, err = s.remote.Insert(ctx, TableUsers, userRow(u))
		return err

	case kindRoom:
		r, err := s.store.GetRoom(ctx, j.key)
		if err != nil {
			return err
		}
		row := roomRow(r)
		id, err := s.remote.Insert(ctx, TableRooms, row)
		if err != nil {
			return err
		}
		// A reused code must clear the tombstone of the room it replaces.
		return s.remote.Update(ctx, TableRooms, id, row)

	case kindRoomDeleted:
		err := s.remote.Update(ctx, TableRooms, j.key, Row{FieldIsDeleted: true})
		if errors.Is(err, model.ErrNotFound) {
			// Never mirrored, nothing to bring back.
			return nil
		}
		return err

	case kindMessage:
		id, _ := strconv.ParseInt(j.key, 10, 64)
		m, err := s.store.GetMessage(ctx, id)
		if err != nil {
			return err
		}
		row := messageRow(m)
		if m.RemoteID != "" {
			return s.update(ctx, TableMessages, m.RemoteID, row, j.fields)
		}
		rid, err := s.remote.Insert(ctx, TableMessages, row)
		if err != nil {
			return err
		}
		return s.store.SetMessageRemoteID(ctx, m.ID, rid)

	case kindDirect:
		id, _ := strconv.ParseInt(j.key, 10, 64)
		d, err := s.store.GetDirectMessage(ctx, id)
		if err != nil {
			return err
		}
		row := directRow(d)
		if d.RemoteID != "" {
			return s.update(ctx, TableDirectMessages, d.RemoteID, row, j.fields)
		}
		rid, err := s.remote.Insert(ctx, TableDirectMessages, row)
		if err != nil {
			return err
		}
		return s.store.SetDirectMessageRemoteID(ctx, d.ID, rid)
	}
	return fmt.Errorf("mirror: unknown job kind %d", j.kind)
}

// update sends the changed fields of an already mirrored record.
// A full push of a linked record has nothing left to send.
func (s *Syncer) update(ctx context.Context, table, remoteID string, row Row, fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	return s.remote.Update(ctx, table, remoteID, pick(row, fields))
}
