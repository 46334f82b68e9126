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

type UserRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *UserRepo) With(db DB) *UserRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *UserRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// FindOrCreate returns the user with the given email, creating one on
// first contact. An existing nameless user picks up the provided name.
func (r *UserRepo) FindOrCreate(ctx context.Context, email, name string) (*domain.User, error) {
	const op = "postgres.UserRepo.FindOrCreate"

	db := r.handle()

	var u domain.User
	err := db.QueryRow(ctx,
		`INSERT INTO users(id, email, name)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (email) DO UPDATE
		 SET name = CASE WHEN users.name = '' THEN EXCLUDED.name ELSE users.name END
		 RETURNING id, email, name, created_at`,
		uuid.New(), email, name,
	).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &u, nil
}

// FindByEmail retrieves a user by email.
//
// Returns:
//   - *domain.User: the user when found.
//   - error: repository.ErrNotFound if no user has this email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	const op = "postgres.UserRepo.FindByEmail"

	db := r.handle()

	var u domain.User
	err := db.QueryRow(ctx,
		`SELECT id, email, name, created_at FROM users WHERE email = $1`,
		email,
	).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &u, nil
}

func (r *UserRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "postgres.UserRepo.FindByID"

	db := r.handle()

	var u domain.User
	err := db.QueryRow(ctx,
		`SELECT id, email, name, created_at FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		return nil, wrapDBErr(op, err)
	}

	return &u, nil
}

type BookingFilter struct {
	Status     *domain.BookingStatus
	FutureOnly bool
	Limit      int
	Offset     int
}

// ListBookings returns a user's bookings joined with their slot and
// event, newest first.
func (r *UserRepo) ListBookings(
	ctx context.Context,
	userID uuid.UUID,
	f BookingFilter,
) ([]domain.BookingDetail, error) {
	const op = "postgres.UserRepo.ListBookings"

	db := r.handle()

	q := `SELECT b.id, b.slot_id, b.event_id, b.user_id, b.status, b.created_at,
	             s.date_time, s.max_bookings, s.current_bookings, s.version, s.created_at,
	             e.title, e.description, e.created_by, e.version, e.created_at
	      FROM bookings b
	      JOIN slots s ON s.id = b.slot_id
	      JOIN events e ON e.id = b.event_id
	      WHERE b.user_id = $1`
	args := []any{userID}

	if f.Status != nil {
		args = append(args, *f.Status)
		q += fmt.Sprintf(" AND b.status = $%d", len(args))
	}

	if f.FutureOnly {
		q += " AND s.date_time > now()"
	}

	args = append(args, f.Limit)
	q += fmt.Sprintf(" ORDER BY b.created_at DESC LIMIT $%d", len(args))
	args = append(args, f.Offset)
	q += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := db.Query(ctx, q, args...)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.BookingDetail
	for rows.Next() {
		var d domain.BookingDetail
		if err := rows.Scan(
			&d.Booking.ID, &d.Booking.SlotID, &d.Booking.EventID,
			&d.Booking.UserID, &d.Booking.Status, &d.Booking.CreatedAt,
			&d.Slot.DateTime, &d.Slot.MaxBookings, &d.Slot.CurrentBookings,
			&d.Slot.Version, &d.Slot.CreatedAt,
			&d.Event.Title, &d.Event.Description, &d.Event.CreatedBy,
			&d.Event.Version, &d.Event.CreatedAt,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}

		d.Slot.ID = d.Booking.SlotID
		d.Slot.EventID = d.Booking.EventID
		d.Event.ID = d.Booking.EventID
		d.User.ID = d.Booking.UserID

		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// BookingStats aggregates a user's bookings by status and by whether
// the slot is still upcoming.
func (r *UserRepo) BookingStats(ctx context.Context, userID uuid.UUID) (*domain.UserBookingStats, error) {
	const op = "postgres.UserRepo.BookingStats"

	db := r.handle()

	var st domain.UserBookingStats
	err := db.QueryRow(ctx,
		`SELECT
		 	COUNT(*),
		 	COUNT(*) FILTER (WHERE b.status = 'CONFIRMED'),
		 	COUNT(*) FILTER (WHERE b.status = 'CANCELLED'),
		 	COUNT(*) FILTER (WHERE b.status = 'WAITLISTED'),
		 	COUNT(*) FILTER (WHERE b.status = 'CONFIRMED' AND s.date_time > now()),
		 	COUNT(*) FILTER (WHERE b.status = 'CONFIRMED' AND s.date_time <= now())
		 FROM bookings b
		 JOIN slots s ON s.id = b.slot_id
		 WHERE b.user_id = $1`,
		userID,
	).Scan(&st.Total, &st.Confirmed, &st.Cancelled, &st.Waitlisted, &st.Upcoming, &st.Past)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &st, nil
}
