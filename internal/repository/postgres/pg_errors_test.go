package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/avelychko/slotbook/internal/repository"
)

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&pgconn.PgError{Code: "40001"}), "serialization_failure")
	assert.True(t, IsRetryable(&pgconn.PgError{Code: "40P01"}), "deadlock_detected")
	assert.True(t, IsRetryable(fmt.Errorf("exec: %w", &pgconn.PgError{Code: "40001"})))

	assert.False(t, IsRetryable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsRetryable(errors.New("broken pipe")))
	assert.False(t, IsRetryable(nil))
}

func TestTranslateDBErr(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", pgx.ErrNoRows, repository.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), repository.ErrNotFound},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, repository.ErrConflict},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, repository.ErrConflict},
		{"unique violation", &pgconn.PgError{Code: "23505"}, repository.ErrConflict},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, translateDBErr(tc.in), tc.want)
		})
	}

	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, translateDBErr(nil))
	})

	t.Run("unknown error passes through", func(t *testing.T) {
		in := errors.New("connection refused")
		assert.Equal(t, in, translateDBErr(in))
	})

	t.Run("other pg errors pass through", func(t *testing.T) {
		in := &pgconn.PgError{Code: "42P01"}
		assert.Equal(t, error(in), translateDBErr(in))
	})
}
