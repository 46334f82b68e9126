package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/avelychko/slotbook/internal/domain"
	"github.com/avelychko/slotbook/internal/repository"
)

type ReservationRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *ReservationRepo) With(db DB) *ReservationRepo {
	cp := *r
	cp.db = db
	return &cp
}

// ReserveSlot runs one full reservation attempt: read the slot and its
// parent event under their current versions, re-check capacity against
// the live CONFIRMED count, reject duplicates, then write the booking
// behind version-guarded updates on both rows. All seven steps share a
// single Serializable transaction; any failure rolls the whole attempt
// back.
//
// Returns:
//   - *domain.BookingDetail: the booking with denormalized slot/event/user data.
//   - error: repository.ErrNotFound if the slot does not exist.
//   - error: repository.ErrSlotFull if the live confirmed count has reached capacity.
//   - error: repository.ErrDuplicateBooking if the user already holds a CONFIRMED booking.
//   - error: repository.ErrConflict on a version race; the caller may retry.
func (r *ReservationRepo) ReserveSlot(
	ctx context.Context,
	slotID, userID uuid.UUID,
) (*domain.BookingDetail, error) {
	const op = "postgres.ReservationRepo.ReserveSlot"

	if r.db != nil {
		detail, err := r.reserveCore(ctx, r.db, slotID, userID)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		return detail, nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer tx.Rollback(ctx)

	detail, err := r.reserveCore(ctx, tx, slotID, userID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return detail, nil
}

func (r *ReservationRepo) reserveCore(
	ctx context.Context,
	db DB,
	slotID, userID uuid.UUID,
) (*domain.BookingDetail, error) {
	const op = "postgres.ReservationRepo.reserveCore"

	// 1. Slot with its version and the parent event's version. Both
	// versions guard the conditional writes below.
	var slot domain.Slot
	var event domain.Event

	err := db.QueryRow(ctx,
		`SELECT s.id, s.event_id, s.date_time, s.max_bookings,
		        s.current_bookings, s.version, s.created_at,
		        e.title, e.description, e.created_by, e.version, e.created_at
		 FROM slots s
		 JOIN events e ON e.id = s.event_id
		 WHERE s.id = $1`,
		slotID,
	).Scan(
		&slot.ID, &slot.EventID, &slot.DateTime, &slot.MaxBookings,
		&slot.CurrentBookings, &slot.Version, &slot.CreatedAt,
		&event.Title, &event.Description, &event.CreatedBy,
		&event.Version, &event.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	event.ID = slot.EventID

	// 2. Capacity is decided on the live count, never on the cached
	// current_bookings counter.
	var confirmed int64
	if err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM bookings
		 WHERE slot_id = $1 AND status = 'CONFIRMED'`,
		slotID,
	).Scan(&confirmed); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if confirmed >= int64(slot.MaxBookings) {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrSlotFull)
	}

	// 3. One CONFIRMED booking per (slot, user).
	var existingStatus string
	err = db.QueryRow(ctx,
		`SELECT status FROM bookings
		 WHERE slot_id = $1 AND user_id = $2`,
		slotID, userID,
	).Scan(&existingStatus)
	switch {
	case err == nil:
		if domain.BookingStatus(existingStatus) == domain.BookingConfirmed {
			return nil, fmt.Errorf("%s:%w", op, repository.ErrDuplicateBooking)
		}
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	// 4. Version-guarded slot update. Zero rows means another writer
	// committed first; the whole attempt is retried from step 1.
	tag, err := db.Exec(ctx,
		`UPDATE slots
		 SET current_bookings = current_bookings + 1, version = version + 1
		 WHERE id = $1 AND version = $2`,
		slotID, slot.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrConflict)
	}

	// 5. The booking row itself.
	booking := domain.Booking{
		ID:      uuid.New(),
		SlotID:  slotID,
		EventID: slot.EventID,
		UserID:  userID,
		Status:  domain.BookingConfirmed,
	}

	if err := db.QueryRow(ctx,
		`INSERT INTO bookings(id, slot_id, event_id, user_id, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		booking.ID, booking.SlotID, booking.EventID, booking.UserID, booking.Status,
	).Scan(&booking.CreatedAt); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	// 6. Version-guarded event update, surfacing the change alongside
	// the slot mutation.
	tag, err = db.Exec(ctx,
		`UPDATE events
		 SET version = version + 1
		 WHERE id = $1 AND version = $2`,
		slot.EventID, event.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrConflict)
	}

	var user domain.User
	user.ID = userID
	if err := db.QueryRow(ctx,
		`SELECT email, name, created_at FROM users WHERE id = $1`,
		userID,
	).Scan(&user.Email, &user.Name, &user.CreatedAt); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	slot.CurrentBookings++
	slot.Version++
	event.Version++

	return &domain.BookingDetail{
		Booking: booking,
		Slot:    slot,
		Event:   event,
		User:    user,
	}, nil
}
