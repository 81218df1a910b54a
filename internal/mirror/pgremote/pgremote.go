// Package pgremote is a mirror.Remote stored in PostgreSQL as one JSONB
// document table per mirrored table.
package pgremote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/roomchat/internal/logger"
	"github.com/roomchat/internal/mirror"
	"github.com/roomchat/internal/model"
)

type Remote struct {
	pool *pgxpool.Pool
}

var _ mirror.Remote = (*Remote)(nil)

func New(pool *pgxpool.Pool) *Remote {
	return &Remote{pool: pool}
}

func tableName(table string) (string, error) {
	if err := mirror.ValidTable(table); err != nil {
		return "", err
	}
	return pgx.Identifier{"mirror_" + table}.Sanitize(), nil
}

// EnsureSchema creates the document tables when missing.
func (r *Remote) EnsureSchema(ctx context.Context) error {
	for _, t := range mirror.Tables {
		name, _ := tableName(t)
		_, err := r.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+name+` (
			id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
			data       JSONB       NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
		if err != nil {
			return fmt.Errorf("pgremote.EnsureSchema %s: %w", t, err)
		}
	}
	return nil
}

func (r *Remote) Insert(ctx context.Context, table string, row mirror.Row) (string, error) {
	defer logger.DeferLogDuration("pgremote.Insert", time.Now())()
	name, err := tableName(table)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(row)
	if err != nil {
		return "", fmt.Errorf("pgremote.Insert marshal: %w", err)
	}

	if v, ok := row[mirror.FieldID]; ok && v != nil {
		id := fmt.Sprint(v)
		_, err := r.pool.Exec(ctx,
			`INSERT INTO `+name+` (id, data) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`, id, data)
		if err != nil {
			return "", fmt.Errorf("pgremote.Insert %s: %w", table, err)
		}
		return id, nil
	}

	var id string
	if err := r.pool.QueryRow(ctx,
		`INSERT INTO `+name+` (data) VALUES ($1) RETURNING id`, data,
	).Scan(&id); err != nil {
		return "", fmt.Errorf("pgremote.Insert %s: %w", table, err)
	}
	return id, nil
}

func (r *Remote) Update(ctx context.Context, table, id string, fields mirror.Row) error {
	defer logger.DeferLogDuration("pgremote.Update", time.Now())()
	name, err := tableName(table)
	if err != nil {
		return err
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("pgremote.Update marshal: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE `+name+` SET data = data || $2::jsonb WHERE id = $1`, id, data)
	if err != nil {
		return fmt.Errorf("pgremote.Update %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pgremote.Update %s/%s: %w", table, id, model.ErrNotFound)
	}
	return nil
}

func (r *Remote) Select(ctx context.Context, table string) ([]mirror.Record, error) {
	defer logger.DeferLogDuration("pgremote.Select", time.Now())()
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, data FROM `+name+` ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("pgremote.Select %s: %w", table, err)
	}
	defer rows.Close()

	out := make([]mirror.Record, 0, 64)
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("pgremote.Select scan: %w", err)
		}
		row := mirror.Row{}
		if err := json.Unmarshal(raw, &row); err != nil {
			logger.Warnf("pgremote.Select %s id=%s: bad document: %v", table, id, err)
			continue
		}
		out = append(out, mirror.Record{ID: id, Row: row})
	}
	if err := rows.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return nil, fmt.Errorf("pgremote.Select rows: %w", err)
	}
	return out, nil
}

// Close releases the pool.
func (r *Remote) Close(context.Context) error {
	r.pool.Close()
	return nil
}
