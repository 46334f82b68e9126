package repository

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrSlotFull         = errors.New("slot is fully booked")
	ErrDuplicateBooking = errors.New("user already has a booking for this slot")
)
