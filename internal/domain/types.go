package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingConfirmed  BookingStatus = "CONFIRMED"
	BookingCancelled  BookingStatus = "CANCELLED"
	BookingWaitlisted BookingStatus = "WAITLISTED"
)

type Event struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"created_by"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
}

type Slot struct {
	ID              uuid.UUID `json:"id"`
	EventID         uuid.UUID `json:"event_id"`
	DateTime        time.Time `json:"date_time"`
	MaxBookings     int       `json:"max_bookings"`
	CurrentBookings int       `json:"current_bookings"`
	Version         int64     `json:"version"`
	CreatedAt       time.Time `json:"created_at"`
}

type Booking struct {
	ID        uuid.UUID     `json:"id"`
	SlotID    uuid.UUID     `json:"slot_id"`
	EventID   uuid.UUID     `json:"event_id"`
	UserID    uuid.UUID     `json:"user_id"`
	Status    BookingStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type EventWithSlots struct {
	Event
	Slots []Slot `json:"slots"`
}

// BookingDetail is the denormalized view returned by a successful
// reservation: the booking plus its slot, event and user, so the caller
// can compose a confirmation without further reads.
type BookingDetail struct {
	Booking Booking `json:"booking"`
	Slot    Slot    `json:"slot"`
	Event   Event   `json:"event"`
	User    User    `json:"user"`
}

type SlotAvailability struct {
	SlotID      uuid.UUID `json:"slot_id"`
	DateTime    time.Time `json:"date_time"`
	MaxBookings int       `json:"max_bookings"`
	Confirmed   int64     `json:"confirmed"`
	Available   int64     `json:"available"`
}

type UserBookingStats struct {
	Total       int64     `json:"total"`
	Confirmed   int64     `json:"confirmed"`
	Cancelled   int64     `json:"cancelled"`
	Waitlisted  int64     `json:"waitlisted"`
	Upcoming    int64     `json:"upcoming"`
	Past        int64     `json:"past"`
	MemberSince time.Time `json:"member_since"`
}
