package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/avelychko/slotbook/internal/repository"
)

// IsRetryable reports whether the error is a transient transaction
// failure that a fresh attempt may resolve (serialization failure or
// deadlock under Serializable isolation).
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return true
		}
	}

	return false
}

func translateDBErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}

	if IsRetryable(err) {
		return repository.ErrConflict
	}

	var pge *pgconn.PgError
	if errors.As(err, &pge) {
		// unique_violation: two writers raced the (slot_id, user_id) key
		if pge.Code == "23505" {
			return repository.ErrConflict
		}
	}

	return err
}
