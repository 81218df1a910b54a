package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/roomchat/internal/logger"
	"github.com/roomchat/internal/model"
)

const dmCols = `id, sender_id, recipient_id, content, raw_content, created_at, edited_at, is_deleted, is_read, COALESCE(remote_id, '')`

type DirectMessageRepository struct {
	pool *pgxpool.Pool
}

func NewDirectMessageRepository(pool *pgxpool.Pool) *DirectMessageRepository {
	return &DirectMessageRepository{pool: pool}
}

func scanDirect(s interface{ Scan(dest ...any) error }, d *model.DirectMessage) error {
	var isDeleted bool
	err := s.Scan(&d.ID, &d.SenderID, &d.RecipientID, &d.Content, &d.RawContent,
		&d.CreatedAt, &d.EditedAt, &isDeleted, &d.IsRead, &d.RemoteID)
	if err != nil {
		return err
	}
	d.State = model.StateOf(isDeleted, d.EditedAt)
	return nil
}

func collectDirect(op string, rows pgx.Rows, err error) ([]model.DirectMessage, error) {
	if err != nil {
		return nil, wrap(op+" query", err)
	}
	defer rows.Close()

	out := make([]model.DirectMessage, 0, 32)
	for rows.Next() {
		var d model.DirectMessage
		if err := scanDirect(rows, &d); err != nil {
			return nil, wrap(op+" scan", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op+" rows", err)
	}
	return out, nil
}

func (r *DirectMessageRepository) CreateDirectMessage(ctx context.Context, d *model.DirectMessage) error {
	defer logger.DeferLogDuration("dm.Create", time.Now())()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO direct_messages (sender_id, recipient_id, content, raw_content, created_at, edited_at, is_deleted, is_read, remote_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, '')) RETURNING id`,
		d.SenderID, d.RecipientID, d.Content, d.RawContent, d.CreatedAt, d.EditedAt, d.IsDeleted(), d.IsRead, d.RemoteID,
	).Scan(&d.ID)
	return wrap("dmRepo.Create", err)
}

func (r *DirectMessageRepository) GetDirectMessage(ctx context.Context, id int64) (*model.DirectMessage, error) {
	defer logger.DeferLogDuration("dm.GetByID", time.Now())()
	d := &model.DirectMessage{}
	if err := scanDirect(r.pool.QueryRow(ctx, `SELECT `+dmCols+` FROM direct_messages WHERE id = $1`, id), d); err != nil {
		return nil, wrap("dmRepo.GetByID", err)
	}
	return d, nil
}

func (r *DirectMessageRepository) GetDirectMessageByRemoteID(ctx context.Context, remoteID string) (*model.DirectMessage, error) {
	defer logger.DeferLogDuration("dm.GetByRemoteID", time.Now())()
	d := &model.DirectMessage{}
	if err := scanDirect(r.pool.QueryRow(ctx, `SELECT `+dmCols+` FROM direct_messages WHERE remote_id = $1`, remoteID), d); err != nil {
		return nil, wrap("dmRepo.GetByRemoteID", err)
	}
	return d, nil
}

func (r *DirectMessageRepository) UpdateDirectMessage(ctx context.Context, d *model.DirectMessage) error {
	defer logger.DeferLogDuration("dm.Update", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE direct_messages SET content = $1, raw_content = $2, edited_at = $3, is_deleted = $4, is_read = $5
		 WHERE id = $6`,
		d.Content, d.RawContent, d.EditedAt, d.IsDeleted(), d.IsRead, d.ID,
	)
	return expectOne("dmRepo.Update", tag, err)
}

func (r *DirectMessageRepository) SetDirectMessageRemoteID(ctx context.Context, id int64, remoteID string) error {
	defer logger.DeferLogDuration("dm.SetRemoteID", time.Now())()
	tag, err := r.pool.Exec(ctx, `UPDATE direct_messages SET remote_id = $1 WHERE id = $2`, remoteID, id)
	return expectOne("dmRepo.SetRemoteID", tag, err)
}

func (r *DirectMessageRepository) ListConversation(ctx context.Context, a, b int64) ([]model.DirectMessage, error) {
	defer logger.DeferLogDuration("dm.ListConversation", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+dmCols+` FROM direct_messages
		 WHERE ((sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1))
		   AND NOT is_deleted
		 ORDER BY created_at, id`, a, b)
	return collectDirect("dmRepo.ListConversation", rows, err)
}

func (r *DirectMessageRepository) ListUnread(ctx context.Context, recipientID, senderID int64) ([]model.DirectMessage, error) {
	defer logger.DeferLogDuration("dm.ListUnread", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+dmCols+` FROM direct_messages
		 WHERE recipient_id = $1 AND sender_id = $2 AND NOT is_read AND NOT is_deleted
		 ORDER BY created_at, id`, recipientID, senderID)
	return collectDirect("dmRepo.ListUnread", rows, err)
}

func (r *DirectMessageRepository) ListPartners(ctx context.Context, userID int64) ([]int64, error) {
	defer logger.DeferLogDuration("dm.ListPartners", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT recipient_id FROM direct_messages WHERE sender_id = $1
		 UNION
		 SELECT sender_id FROM direct_messages WHERE recipient_id = $1
		 ORDER BY 1`, userID)
	if err != nil {
		return nil, wrap("dmRepo.ListPartners query", err)
	}
	defer rows.Close()

	ids := make([]int64, 0, 16)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, wrap("dmRepo.ListPartners scan", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("dmRepo.ListPartners rows", err)
	}
	return ids, nil
}
