package httpgin

import (
	"fmt"
	"time"
)

type CreateBookingRequest struct {
	SlotID string `json:"slot_id" binding:"required,uuid"`
	Email  string `json:"email" binding:"required,email"`
	Name   string `json:"name" binding:"required,min=1,max=100"`
}

type SlotInput struct {
	DateTime    string `json:"date_time" binding:"required"`
	MaxBookings int    `json:"max_bookings" binding:"required,gte=1,lte=1000"`
}

type CreateEventRequest struct {
	Title       string      `json:"title" binding:"required,min=3,max=100"`
	Description string      `json:"description" binding:"required,min=10,max=500"`
	CreatedBy   string      `json:"created_by" binding:"required"`
	Slots       []SlotInput `json:"slots" binding:"required,min=1,dive"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type BookingFailureResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	RetryCount int    `json:"retry_count"`
}

// parseSlots validates that every slot is in the future and no two
// slots share a time, mirroring the event-creation rules.
func parseSlots(in []SlotInput) ([]time.Time, error) {
	seen := make(map[time.Time]struct{}, len(in))
	out := make([]time.Time, 0, len(in))
	now := time.Now()

	for i, s := range in {
		ts, err := time.Parse(time.RFC3339, s.DateTime)
		if err != nil {
			return nil, fmt.Errorf("slot %d: invalid date_time (RFC3339)", i)
		}

		if !ts.After(now) {
			return nil, fmt.Errorf("slot %d: date_time must be in the future", i)
		}

		if _, dup := seen[ts]; dup {
			return nil, fmt.Errorf("slot %d: duplicate slot time", i)
		}

		seen[ts] = struct{}{}
		out = append(out, ts)
	}

	return out, nil
}
