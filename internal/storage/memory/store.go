// Package memory holds in-process implementations of the storage contracts.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/roomchat/internal/model"
)

// Store is a storage.Store kept entirely in memory. Values are copied on the way
// in and out so callers never share state with the store.
type Store struct {
	mu sync.RWMutex

	users     map[int64]*model.User
	usernames map[string]int64
	nextUser  int64

	rooms map[string]*model.Room

	messages      map[int64]*model.Message
	messageRemote map[string]int64
	nextMessage   int64

	reactions    map[int64][]model.Reaction
	nextReaction int64

	direct       map[int64]*model.DirectMessage
	directRemote map[string]int64
	nextDirect   int64
}

func New() *Store {
	return &Store{
		users:         make(map[int64]*model.User),
		usernames:     make(map[string]int64),
		rooms:         make(map[string]*model.Room),
		messages:      make(map[int64]*model.Message),
		messageRemote: make(map[string]int64),
		reactions:     make(map[int64][]model.Reaction),
		direct:        make(map[int64]*model.DirectMessage),
		directRemote:  make(map[string]int64),
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneMessage(m *model.Message) *model.Message {
	c := *m
	c.EditedAt = cloneTime(m.EditedAt)
	if m.UserID != nil {
		id := *m.UserID
		c.UserID = &id
	}
	c.ReadBy = model.NewReadSet(m.ReadBy.Names()...)
	return &c
}

func cloneDirect(d *model.DirectMessage) *model.DirectMessage {
	c := *d
	c.EditedAt = cloneTime(d.EditedAt)
	return &c
}

// Users

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usernames[u.Username]; ok {
		return fmt.Errorf("memory.CreateUser %q: %w", u.Username, model.ErrConflict)
	}
	if u.ID == 0 {
		s.nextUser++
		u.ID = s.nextUser
	} else {
		if _, ok := s.users[u.ID]; ok {
			return fmt.Errorf("memory.CreateUser id=%d: %w", u.ID, model.ErrConflict)
		}
		if u.ID > s.nextUser {
			s.nextUser = u.ID
		}
	}
	c := *u
	s.users[u.ID] = &c
	s.usernames[u.Username] = u.ID
	return nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("memory.GetUser id=%d: %w", id, model.ErrNotFound)
	}
	c := *u
	return &c, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usernames[username]
	if !ok {
		return nil, fmt.Errorf("memory.GetUserByUsername %q: %w", username, model.ErrNotFound)
	}
	c := *s.users[id]
	return &c, nil
}

func (s *Store) UpdateUser(ctx context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[u.ID]
	if !ok {
		return fmt.Errorf("memory.UpdateUser id=%d: %w", u.ID, model.ErrNotFound)
	}
	cur.DisplayName = u.DisplayName
	cur.AvatarRef = u.AvatarRef
	cur.Settings = u.Settings
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Rooms

func (s *Store) CreateRoom(ctx context.Context, r *model.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[r.Code]; ok {
		return fmt.Errorf("memory.CreateRoom %q: %w", r.Code, model.ErrConflict)
	}
	c := *r
	s.rooms[r.Code] = &c
	return nil
}

func (s *Store) GetRoom(ctx context.Context, code string) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[code]
	if !ok {
		return nil, fmt.Errorf("memory.GetRoom %q: %w", code, model.ErrNotFound)
	}
	c := *r
	return &c, nil
}

func (s *Store) DeleteRoom(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[code]; !ok {
		return fmt.Errorf("memory.DeleteRoom %q: %w", code, model.ErrNotFound)
	}
	delete(s.rooms, code)
	for id, m := range s.messages {
		if m.RoomCode != code {
			continue
		}
		if m.RemoteID != "" {
			delete(s.messageRemote, m.RemoteID)
		}
		delete(s.reactions, id)
		delete(s.messages, id)
	}
	return nil
}

func (s *Store) ListPublicRooms(ctx context.Context) ([]model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		if r.IsPublic {
			out = append(out, *r)
		}
	}
	return out, nil
}

// Messages

func (s *Store) CreateMessage(ctx context.Context, m *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[m.RoomCode]; !ok {
		return fmt.Errorf("memory.CreateMessage room %q: %w", m.RoomCode, model.ErrNotFound)
	}
	if m.RemoteID != "" {
		if _, ok := s.messageRemote[m.RemoteID]; ok {
			return fmt.Errorf("memory.CreateMessage remote %q: %w", m.RemoteID, model.ErrConflict)
		}
	}
	s.nextMessage++
	m.ID = s.nextMessage
	s.messages[m.ID] = cloneMessage(m)
	if m.RemoteID != "" {
		s.messageRemote[m.RemoteID] = m.ID
	}
	return nil
}

func (s *Store) GetMessage(ctx context.Context, id int64) (*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, fmt.Errorf("memory.GetMessage id=%d: %w", id, model.ErrNotFound)
	}
	return cloneMessage(m), nil
}

func (s *Store) GetMessageByRemoteID(ctx context.Context, remoteID string) (*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.messageRemote[remoteID]
	if !ok {
		return nil, fmt.Errorf("memory.GetMessageByRemoteID %q: %w", remoteID, model.ErrNotFound)
	}
	return cloneMessage(s.messages[id]), nil
}

func (s *Store) ListRoomMessages(ctx context.Context, code string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Message, 0, 16)
	for _, m := range s.messages {
		if m.RoomCode == code {
			out = append(out, *cloneMessage(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateMessage(ctx context.Context, m *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.messages[m.ID]
	if !ok {
		return fmt.Errorf("memory.UpdateMessage id=%d: %w", m.ID, model.ErrNotFound)
	}
	c := cloneMessage(m)
	c.RemoteID = cur.RemoteID
	s.messages[m.ID] = c
	return nil
}

func (s *Store) SetMessageRemoteID(ctx context.Context, id int64, remoteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return fmt.Errorf("memory.SetMessageRemoteID id=%d: %w", id, model.ErrNotFound)
	}
	if other, ok := s.messageRemote[remoteID]; ok && other != id {
		return fmt.Errorf("memory.SetMessageRemoteID %q: %w", remoteID, model.ErrConflict)
	}
	if m.RemoteID != "" {
		delete(s.messageRemote, m.RemoteID)
	}
	m.RemoteID = remoteID
	s.messageRemote[remoteID] = id
	return nil
}

// Reactions

func (s *Store) ToggleReaction(ctx context.Context, messageID, userID int64, emoji string) (model.ReactionAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[messageID]; !ok {
		return "", fmt.Errorf("memory.ToggleReaction id=%d: %w", messageID, model.ErrNotFound)
	}
	list := s.reactions[messageID]
	for i, r := range list {
		if r.UserID == userID && r.Emoji == emoji {
			s.reactions[messageID] = append(list[:i:i], list[i+1:]...)
			return model.ReactionRemoved, nil
		}
	}
	s.nextReaction++
	s.reactions[messageID] = append(list, model.Reaction{
		ID:        s.nextReaction,
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
		CreatedAt: time.Now().UTC(),
	})
	return model.ReactionAdded, nil
}

func (s *Store) ListReactions(ctx context.Context, messageID int64) ([]model.Reaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.reactions[messageID]
	out := make([]model.Reaction, len(list))
	copy(out, list)
	return out, nil
}

// Direct messages

func (s *Store) CreateDirectMessage(ctx context.Context, d *model.DirectMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[d.SenderID]; !ok {
		return fmt.Errorf("memory.CreateDirectMessage sender=%d: %w", d.SenderID, model.ErrNotFound)
	}
	if _, ok := s.users[d.RecipientID]; !ok {
		return fmt.Errorf("memory.CreateDirectMessage recipient=%d: %w", d.RecipientID, model.ErrNotFound)
	}
	if d.RemoteID != "" {
		if _, ok := s.directRemote[d.RemoteID]; ok {
			return fmt.Errorf("memory.CreateDirectMessage remote %q: %w", d.RemoteID, model.ErrConflict)
		}
	}
	s.nextDirect++
	d.ID = s.nextDirect
	s.direct[d.ID] = cloneDirect(d)
	if d.RemoteID != "" {
		s.directRemote[d.RemoteID] = d.ID
	}
	return nil
}

func (s *Store) GetDirectMessage(ctx context.Context, id int64) (*model.DirectMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.direct[id]
	if !ok {
		return nil, fmt.Errorf("memory.GetDirectMessage id=%d: %w", id, model.ErrNotFound)
	}
	return cloneDirect(d), nil
}

func (s *Store) GetDirectMessageByRemoteID(ctx context.Context, remoteID string) (*model.DirectMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.directRemote[remoteID]
	if !ok {
		return nil, fmt.Errorf("memory.GetDirectMessageByRemoteID %q: %w", remoteID, model.ErrNotFound)
	}
	return cloneDirect(s.direct[id]), nil
}

func (s *Store) UpdateDirectMessage(ctx context.Context, d *model.DirectMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.direct[d.ID]
	if !ok {
		return fmt.Errorf("memory.UpdateDirectMessage id=%d: %w", d.ID, model.ErrNotFound)
	}
	c := cloneDirect(d)
	c.RemoteID = cur.RemoteID
	s.direct[d.ID] = c
	return nil
}

func (s *Store) SetDirectMessageRemoteID(ctx context.Context, id int64, remoteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.direct[id]
	if !ok {
		return fmt.Errorf("memory.SetDirectMessageRemoteID id=%d: %w", id, model.ErrNotFound)
	}
	if other, ok := s.directRemote[remoteID]; ok && other != id {
		return fmt.Errorf("memory.SetDirectMessageRemoteID %q: %w", remoteID, model.ErrConflict)
	}
	if d.RemoteID != "" {
		delete(s.directRemote, d.RemoteID)
	}
	d.RemoteID = remoteID
	s.directRemote[remoteID] = id
	return nil
}

func sortDirect(list []model.DirectMessage) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}

func (s *Store) ListConversation(ctx context.Context, a, b int64) ([]model.DirectMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.DirectMessage, 0, 16)
	for _, d := range s.direct {
		if d.IsDeleted() {
			continue
		}
		if (d.SenderID == a && d.RecipientID == b) || (d.SenderID == b && d.RecipientID == a) {
			out = append(out, *cloneDirect(d))
		}
	}
	sortDirect(out)
	return out, nil
}

func (s *Store) ListUnread(ctx context.Context, recipientID, senderID int64) ([]model.DirectMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.DirectMessage, 0, 8)
	for _, d := range s.direct {
		if d.RecipientID == recipientID && d.SenderID == senderID && !d.IsRead && !d.IsDeleted() {
			out = append(out, *cloneDirect(d))
		}
	}
	sortDirect(out)
	return out, nil
}

func (s *Store) ListPartners(ctx context.Context, userID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[int64]struct{}, 8)
	for _, d := range s.direct {
		switch userID {
		case d.SenderID:
			seen[d.RecipientID] = struct{}{}
		case d.RecipientID:
			seen[d.SenderID] = struct{}{}
		}
	}
	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
