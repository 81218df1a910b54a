package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/roomchat/internal/logger"
	"github.com/roomchat/internal/model"
)

type RoomRepository struct {
	pool *pgxpool.Pool
}

func NewRoomRepository(pool *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{pool: pool}
}

func (r *RoomRepository) CreateRoom(ctx context.Context, room *model.Room) error {
	defer logger.DeferLogDuration("room.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO rooms (code, creator, is_public, created_at) VALUES ($1, $2, $3, $4)`,
		room.Code, room.Creator, room.IsPublic, room.CreatedAt,
	)
	return wrap("roomRepo.Create", err)
}

func (r *RoomRepository) GetRoom(ctx context.Context, code string) (*model.Room, error) {
	defer logger.DeferLogDuration("room.Get", time.Now())()
	room := &model.Room{}
	err := r.pool.QueryRow(ctx,
		`SELECT code, creator, is_public, created_at FROM rooms WHERE code = $1`, code,
	).Scan(&room.Code, &room.Creator, &room.IsPublic, &room.CreatedAt)
	if err != nil {
		return nil, wrap("roomRepo.Get", err)
	}
	return room, nil
}

// DeleteRoom relies on ON DELETE CASCADE for messages and reactions.
func (r *RoomRepository) DeleteRoom(ctx context.Context, code string) error {
	defer logger.DeferLogDuration("room.Delete", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM rooms WHERE code = $1`, code)
	return expectOne("roomRepo.Delete", tag, err)
}

func (r *RoomRepository) ListPublicRooms(ctx context.Context) ([]model.Room, error) {
	defer logger.DeferLogDuration("room.ListPublic", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT code, creator, is_public, created_at FROM rooms WHERE is_public`)
	if err != nil {
		return nil, wrap("roomRepo.ListPublic query", err)
	}
	defer rows.Close()

	rooms := make([]model.Room, 0, 16)
	for rows.Next() {
		var room model.Room
		if err := rows.Scan(&room.Code, &room.Creator, &room.IsPublic, &room.CreatedAt); err != nil {
			return nil, wrap("roomRepo.ListPublic scan", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("roomRepo.ListPublic rows", err)
	}
	return rooms, nil
}
