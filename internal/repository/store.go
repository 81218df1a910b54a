// Package repository implements storage.Store on PostgreSQL via pgx.
package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/roomchat/internal/storage"
)

// Store composes the per-table repositories into one storage.Store.
type Store struct {
	*UserRepository
	*RoomRepository
	*MessageRepository
	*ReactionRepository
	*DirectMessageRepository
}

var _ storage.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		UserRepository:          NewUserRepository(pool),
		RoomRepository:          NewRoomRepository(pool),
		MessageRepository:       NewMessageRepository(pool),
		ReactionRepository:      NewReactionRepository(pool),
		DirectMessageRepository: NewDirectMessageRepository(pool),
	}
}
