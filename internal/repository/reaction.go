package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/roomchat/internal/logger"
	"github.com/roomchat/internal/model"
)

type ReactionRepository struct {
	pool *pgxpool.Pool
}

func NewReactionRepository(pool *pgxpool.Pool) *ReactionRepository {
	return &ReactionRepository{pool: pool}
}

// ToggleReaction removes the reaction if it exists, otherwise inserts it.
// Both steps run in one transaction so concurrent toggles cannot leave duplicates.
func (r *ReactionRepository) ToggleReaction(ctx context.Context, messageID, userID int64, emoji string) (model.ReactionAction, error) {
	defer logger.DeferLogDuration("reaction.Toggle", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", wrap("reactionRepo.Toggle begin", err)
	}
	defer tx.Rollback(ctx)

	var removed int64
	err = tx.QueryRow(ctx,
		`DELETE FROM message_reactions WHERE message_id = $1 AND user_id = $2 AND emoji = $3 RETURNING id`,
		messageID, userID, emoji,
	).Scan(&removed)
	action := model.ReactionRemoved
	switch {
	case err == pgx.ErrNoRows:
		if _, err := tx.Exec(ctx,
			`INSERT INTO message_reactions (message_id, user_id, emoji) VALUES ($1, $2, $3)
			 ON CONFLICT DO NOTHING`,
			messageID, userID, emoji,
		); err != nil {
			return "", wrap("reactionRepo.Toggle insert", err)
		}
		action = model.ReactionAdded
	case err != nil:
		return "", wrap("reactionRepo.Toggle delete", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", wrap("reactionRepo.Toggle commit", err)
	}
	return action, nil
}

func (r *ReactionRepository) ListReactions(ctx context.Context, messageID int64) ([]model.Reaction, error) {
	defer logger.DeferLogDuration("reaction.GetByMessage", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, message_id, user_id, emoji, created_at
		 FROM message_reactions
		 WHERE message_id = $1
		 ORDER BY created_at, id`, messageID,
	)
	if err != nil {
		return nil, wrap("reactionRepo.GetByMessage query", err)
	}
	defer rows.Close()

	reactions := make([]model.Reaction, 0, 8)
	for rows.Next() {
		var re model.Reaction
		if err := rows.Scan(&re.ID, &re.MessageID, &re.UserID, &re.Emoji, &re.CreatedAt); err != nil {
			return nil, wrap("reactionRepo.GetByMessage scan", err)
		}
		reactions = append(reactions, re)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("reactionRepo.GetByMessage rows", err)
	}
	return reactions, nil
}
