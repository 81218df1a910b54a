package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/roomchat/internal/model"
	"github.com/stretchr/testify/require"
)

func TestWrapMapsDriverErrors(t *testing.T) {
	req := require.New(t)

	req.NoError(wrap("op", nil))
	req.ErrorIs(wrap("msgRepo.Get", pgx.ErrNoRows), model.ErrNotFound)
	req.ErrorIs(wrap("roomRepo.Create", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "rooms_pkey"}), model.ErrConflict)
	req.ErrorIs(wrap("msgRepo.Create", fmt.Errorf("exec: %w", &pgconn.PgError{Code: pgStringTooLong})), model.ErrInvalidInput)

	err := wrap("msgRepo.Create", errors.New("conn reset"))
	req.Equal("internal", model.Code(err))
	req.Contains(err.Error(), "msgRepo.Create")
}
