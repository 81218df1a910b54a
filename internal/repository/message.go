package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/roomchat/internal/logger"
	"github.com/roomchat/internal/model"
)

const msgCols = `id, room_code, sender, user_id, content, raw_content, created_at, edited_at, is_deleted, read_by, COALESCE(remote_id, '')`

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func scanMessage(s interface{ Scan(dest ...any) error }, m *model.Message) error {
	var (
		isDeleted bool
		readBy    []string
	)
	err := s.Scan(&m.ID, &m.RoomCode, &m.Sender, &m.UserID, &m.Content, &m.RawContent,
		&m.CreatedAt, &m.EditedAt, &isDeleted, &readBy, &m.RemoteID)
	if err != nil {
		return err
	}
	m.State = model.StateOf(isDeleted, m.EditedAt)
	m.ReadBy = model.NewReadSet(readBy...)
	return nil
}

func (r *MessageRepository) CreateMessage(ctx context.Context, m *model.Message) error {
	defer logger.DeferLogDuration("msg.Create", time.Now())()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO messages (room_code, sender, user_id, content, raw_content, created_at, edited_at, is_deleted, read_by, remote_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, '')) RETURNING id`,
		m.RoomCode, m.Sender, m.UserID, m.Content, m.RawContent, m.CreatedAt, m.EditedAt, m.IsDeleted(), m.ReadBy.Names(), m.RemoteID,
	).Scan(&m.ID)
	return wrap("msgRepo.Create", err)
}

func (r *MessageRepository) GetMessage(ctx context.Context, id int64) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.GetByID", time.Now())()
	m := &model.Message{}
	if err := scanMessage(r.pool.QueryRow(ctx, `SELECT `+msgCols+` FROM messages WHERE id = $1`, id), m); err != nil {
		return nil, wrap("msgRepo.GetByID", err)
	}
	return m, nil
}

func (r *MessageRepository) GetMessageByRemoteID(ctx context.Context, remoteID string) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.GetByRemoteID", time.Now())()
	m := &model.Message{}
	if err := scanMessage(r.pool.QueryRow(ctx, `SELECT `+msgCols+` FROM messages WHERE remote_id = $1`, remoteID), m); err != nil {
		return nil, wrap("msgRepo.GetByRemoteID", err)
	}
	return m, nil
}

func (r *MessageRepository) ListRoomMessages(ctx context.Context, code string) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.ListRoom", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+msgCols+` FROM messages WHERE room_code = $1 ORDER BY created_at, id`, code)
	if err != nil {
		return nil, wrap("msgRepo.ListRoom query", err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0, 64)
	for rows.Next() {
		var m model.Message
		if err := scanMessage(rows, &m); err != nil {
			return nil, wrap("msgRepo.ListRoom scan", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("msgRepo.ListRoom rows", err)
	}
	return messages, nil
}

func (r *MessageRepository) UpdateMessage(ctx context.Context, m *model.Message) error {
	defer logger.DeferLogDuration("msg.Update", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE messages SET content = $1, raw_content = $2, edited_at = $3, is_deleted = $4, read_by = $5
		 WHERE id = $6`,
		m.Content, m.RawContent, m.EditedAt, m.IsDeleted(), m.ReadBy.Names(), m.ID,
	)
	return expectOne("msgRepo.Update", tag, err)
}

func (r *MessageRepository) SetMessageRemoteID(ctx context.Context, id int64, remoteID string) error {
	defer logger.DeferLogDuration("msg.SetRemoteID", time.Now())()
	tag, err := r.pool.Exec(ctx, `UPDATE messages SET remote_id = $1 WHERE id = $2`, remoteID, id)
	return expectOne("msgRepo.SetRemoteID", tag, err)
}
