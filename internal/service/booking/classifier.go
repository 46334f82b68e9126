package booking

import (
	"errors"

	"github.com/avelychko/slotbook/internal/repository"
)

type outcome int

const (
	// outcomeRetryable: a version race or serialization failure; a fresh
	// attempt may succeed.
	outcomeRetryable outcome = iota
	// outcomeTerminal: a business-rule rejection; retrying cannot help.
	outcomeTerminal
	// outcomeUnexpected: storage or transport fault outside the known set.
	outcomeUnexpected
)

func classify(err error) outcome {
	switch {
	case errors.Is(err, repository.ErrConflict):
		return outcomeRetryable
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, repository.ErrSlotFull),
		errors.Is(err, repository.ErrDuplicateBooking):
		return outcomeTerminal
	default:
		return outcomeUnexpected
	}
}

// terminalFailure maps a business-rule rejection to its typed failure.
// Callers must only pass errors already classified as outcomeTerminal.
func terminalFailure(err error, retries int) *Failure {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return failure(CodeSlotNotFound, "slot not found", retries)
	case errors.Is(err, repository.ErrSlotFull):
		return failure(CodeSlotFull, "slot is fully booked", retries)
	case errors.Is(err, repository.ErrDuplicateBooking):
		return failure(CodeDuplicateBooking, "user already has a booking for this slot", retries)
	default:
		return failure(CodeUnexpected, "an unexpected error occurred, please try again", retries)
	}
}
