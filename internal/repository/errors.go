package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/roomchat/internal/model"
)

const (
	pgUniqueViolation = "23505"
	pgStringTooLong   = "22001"
)

// wrap maps driver errors onto the model taxonomy and prefixes op.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, model.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %s: %w", op, pgErr.ConstraintName, model.ErrConflict)
		case pgStringTooLong:
			return fmt.Errorf("%s: %s: %w", op, pgErr.Message, model.ErrInvalidInput)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// expectOne turns a zero-row update into ErrNotFound.
func expectOne(op string, tag pgconn.CommandTag, err error) error {
	if err != nil {
		return wrap(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, model.ErrNotFound)
	}
	return nil
}
