package booking

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/avelychko/slotbook/internal/repository"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want outcome
	}{
		{"conflict is retryable", repository.ErrConflict, outcomeRetryable},
		{"not found is terminal", repository.ErrNotFound, outcomeTerminal},
		{"slot full is terminal", repository.ErrSlotFull, outcomeTerminal},
		{"duplicate is terminal", repository.ErrDuplicateBooking, outcomeTerminal},
		{"unknown is unexpected", errors.New("connection refused"), outcomeUnexpected},
		{"nil is unexpected", nil, outcomeUnexpected},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classify(tc.err))
		})
	}
}

func TestClassify_SeesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("repository.postgres.ReservationRepo.ReserveSlot:%w", repository.ErrConflict)
	assert.Equal(t, outcomeRetryable, classify(err))

	err = fmt.Errorf("outer: %w", fmt.Errorf("inner:%w", repository.ErrSlotFull))
	assert.Equal(t, outcomeTerminal, classify(err))
}

func TestTerminalFailure(t *testing.T) {
	tests := []struct {
		err      error
		code     Code
		message  string
	}{
		{repository.ErrNotFound, CodeSlotNotFound, "slot not found"},
		{repository.ErrSlotFull, CodeSlotFull, "slot is fully booked"},
		{repository.ErrDuplicateBooking, CodeDuplicateBooking, "user already has a booking for this slot"},
	}

	for _, tc := range tests {
		f := terminalFailure(fmt.Errorf("wrapped:%w", tc.err), 2)
		assert.Equal(t, tc.code, f.Code)
		assert.Equal(t, tc.message, f.Message)
		assert.Equal(t, 2, f.RetryCount)
		assert.EqualError(t, f, tc.message)
	}
}
