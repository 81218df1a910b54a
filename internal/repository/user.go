package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/roomchat/internal/logger"
	"github.com/roomchat/internal/model"
)

// userCols is the SELECT column list matching scanUser.
const userCols = `id, username, display_name, avatar_ref, theme, notifications, sounds, created_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(s interface{ Scan(dest ...any) error }, u *model.User) error {
	return s.Scan(&u.ID, &u.Username, &u.DisplayName, &u.AvatarRef,
		&u.Settings.Theme, &u.Settings.Notifications, &u.Settings.Sounds, &u.CreatedAt)
}

func (r *UserRepository) CreateUser(ctx context.Context, u *model.User) error {
	defer logger.DeferLogDuration("user.Create", time.Now())()
	if u.ID != 0 {
		return r.importUser(ctx, u)
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (username, display_name, avatar_ref, theme, notifications, sounds, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		u.Username, u.DisplayName, u.AvatarRef, u.Settings.Theme, u.Settings.Notifications, u.Settings.Sounds, u.CreatedAt,
	).Scan(&u.ID)
	return wrap("userRepo.Create", err)
}

// importUser inserts a user with an explicit id and moves the id sequence past it,
// so later locally created users never collide with imported ones.
func (r *UserRepository) importUser(ctx context.Context, u *model.User) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return wrap("userRepo.Import begin", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO users (id, username, display_name, avatar_ref, theme, notifications, sounds, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Username, u.DisplayName, u.AvatarRef, u.Settings.Theme, u.Settings.Notifications, u.Settings.Sounds, u.CreatedAt,
	)
	if err != nil {
		return wrap("userRepo.Import", err)
	}
	if _, err := tx.Exec(ctx,
		`SELECT setval(pg_get_serial_sequence('users', 'id'), GREATEST((SELECT MAX(id) FROM users), 1))`,
	); err != nil {
		return wrap("userRepo.Import setval", err)
	}
	return wrap("userRepo.Import commit", tx.Commit(ctx))
}

func (r *UserRepository) GetUser(ctx context.Context, id int64) (*model.User, error) {
	defer logger.DeferLogDuration("user.GetByID", time.Now())()
	u := &model.User{}
	if err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id), u); err != nil {
		return nil, wrap("userRepo.GetByID", err)
	}
	return u, nil
}

func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	defer logger.DeferLogDuration("user.GetByUsername", time.Now())()
	u := &model.User{}
	if err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE username = $1`, username), u); err != nil {
		return nil, wrap("userRepo.GetByUsername", err)
	}
	return u, nil
}

// UpdateUser writes the mutable profile and settings; username is immutable.
func (r *UserRepository) UpdateUser(ctx context.Context, u *model.User) error {
	defer logger.DeferLogDuration("user.Update", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET display_name = $1, avatar_ref = $2, theme = $3, notifications = $4, sounds = $5
		 WHERE id = $6`,
		u.DisplayName, u.AvatarRef, u.Settings.Theme, u.Settings.Notifications, u.Settings.Sounds, u.ID,
	)
	return expectOne("userRepo.Update", tag, err)
}

func (r *UserRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	defer logger.DeferLogDuration("user.List", time.Now())()
	rows, err := r.pool.Query(ctx, `SELECT `+userCols+` FROM users ORDER BY id`)
	if err != nil {
		return nil, wrap("userRepo.List query", err)
	}
	defer rows.Close()

	users := make([]model.User, 0, 32)
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, wrap("userRepo.List scan", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("userRepo.List rows", err)
	}
	return users, nil
}
