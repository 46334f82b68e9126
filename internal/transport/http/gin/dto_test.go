package httpgin

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/avelychko/slotbook/internal/service/booking"
)

func TestParseSlots(t *testing.T) {
	future := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	past := time.Now().Add(-time.Hour).Truncate(time.Second)

	t.Run("valid future slots", func(t *testing.T) {
		in := []SlotInput{
			{DateTime: future.Format(time.RFC3339), MaxBookings: 10},
			{DateTime: future.Add(time.Hour).Format(time.RFC3339), MaxBookings: 5},
		}

		out, err := parseSlots(in)
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.True(t, out[0].Equal(future))
	})

	t.Run("rejects bad timestamp", func(t *testing.T) {
		_, err := parseSlots([]SlotInput{{DateTime: "2026-13-45", MaxBookings: 1}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid date_time")
	})

	t.Run("rejects past slot", func(t *testing.T) {
		_, err := parseSlots([]SlotInput{{DateTime: past.Format(time.RFC3339), MaxBookings: 1}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be in the future")
	})

	t.Run("rejects duplicate times", func(t *testing.T) {
		ts := future.Format(time.RFC3339)
		_, err := parseSlots([]SlotInput{
			{DateTime: ts, MaxBookings: 1},
			{DateTime: ts, MaxBookings: 2},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate slot time")
	})

	t.Run("empty input", func(t *testing.T) {
		out, err := parseSlots(nil)
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}

func TestStatusForFailure(t *testing.T) {
	tests := []struct {
		code booking.Code
		want int
	}{
		{booking.CodeSlotNotFound, http.StatusNotFound},
		{booking.CodeSlotFull, http.StatusConflict},
		{booking.CodeDuplicateBooking, http.StatusConflict},
		{booking.CodeConflictExhausted, http.StatusConflict},
		{booking.CodeUnexpected, http.StatusInternalServerError},
		{booking.Code("SOMETHING_NEW"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, statusForFailure(tc.code), string(tc.code))
	}
}
