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

type EventRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *EventRepo) With(db DB) *EventRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *EventRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *EventRepo) CreateEvent(
	ctx context.Context,
	title, description, createdBy string,
) (*domain.Event, error) {
	const op = "postgres.EventRepo.CreateEvent"

	db := r.handle()

	e := domain.Event{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		CreatedBy:   createdBy,
	}

	if err := db.QueryRow(ctx,
		`INSERT INTO events(id, title, description, created_by, version)
		 VALUES ($1, $2, $3, $4, 0)
		 RETURNING version, created_at`,
		e.ID, e.Title, e.Description, e.CreatedBy,
	).Scan(&e.Version, &e.CreatedAt); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &e, nil
}

// CreateSlots inserts the event's slots with version = 0 and
// current_bookings = 0. Only the reservation engine mutates them
// afterwards.
func (r *EventRepo) CreateSlots(
	ctx context.Context,
	eventID uuid.UUID,
	slots []domain.Slot,
) ([]domain.Slot, error) {
	const op = "postgres.EventRepo.CreateSlots"

	db := r.handle()

	batch := &pgx.Batch{}
	out := make([]domain.Slot, 0, len(slots))

	for _, s := range slots {
		s.ID = uuid.New()
		s.EventID = eventID
		s.CurrentBookings = 0
		s.Version = 0
		out = append(out, s)

		batch.Queue(
			`INSERT INTO slots(id, event_id, date_time, max_bookings, current_bookings, version)
			 VALUES ($1, $2, $3, $4, 0, 0)`,
			s.ID, s.EventID, s.DateTime, s.MaxBookings,
		)
	}

	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// GetEvent retrieves an event with its slots. When futureOnly is set,
// only slots that have not started yet are included, ordered ascending.
//
// Returns:
//   - *domain.EventWithSlots: the event when found.
//   - error: repository.ErrNotFound if the event is not found.
func (r *EventRepo) GetEvent(
	ctx context.Context,
	id uuid.UUID,
	futureOnly bool,
) (*domain.EventWithSlots, error) {
	const op = "postgres.EventRepo.GetEvent"

	db := r.handle()

	var out domain.EventWithSlots
	err := db.QueryRow(ctx,
		`SELECT id, title, description, created_by, version, created_at
		 FROM events WHERE id = $1`,
		id,
	).Scan(
		&out.ID, &out.Title, &out.Description,
		&out.CreatedBy, &out.Version, &out.CreatedAt,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	var rows pgx.Rows
	if futureOnly {
		rows, err = db.Query(ctx,
			`SELECT id, event_id, date_time, max_bookings, current_bookings, version, created_at
			 FROM slots
			 WHERE event_id = $1 AND date_time > now()
			 ORDER BY date_time`,
			id,
		)
	} else {
		rows, err = db.Query(ctx,
			`SELECT id, event_id, date_time, max_bookings, current_bookings, version, created_at
			 FROM slots
			 WHERE event_id = $1
			 ORDER BY date_time`,
			id,
		)
	}
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	for rows.Next() {
		var s domain.Slot
		if err := rows.Scan(
			&s.ID, &s.EventID, &s.DateTime, &s.MaxBookings,
			&s.CurrentBookings, &s.Version, &s.CreatedAt,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}

		out.Slots = append(out.Slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &out, nil
}

// ListEvents lists events newest first. When futureOnly is set, only
// events that still have an upcoming slot are returned.
func (r *EventRepo) ListEvents(
	ctx context.Context,
	futureOnly bool,
	limit, offset int,
) ([]domain.EventWithSlots, error) {
	const op = "postgres.EventRepo.ListEvents"

	db := r.handle()

	var rows pgx.Rows
	var err error

	if futureOnly {
		rows, err = db.Query(ctx,
			`SELECT id, title, description, created_by, version, created_at
			 FROM events e
			 WHERE EXISTS (
			 	SELECT 1 FROM slots s
			 	WHERE s.event_id = e.id AND s.date_time > now()
			 )
			 ORDER BY created_at DESC
			 LIMIT $1 OFFSET $2`,
			limit, offset,
		)
	} else {
		rows, err = db.Query(ctx,
			`SELECT id, title, description, created_by, version, created_at
			 FROM events
			 ORDER BY created_at DESC
			 LIMIT $1 OFFSET $2`,
			limit, offset,
		)
	}
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var events []domain.EventWithSlots
	ids := make([]uuid.UUID, 0)

	for rows.Next() {
		var e domain.EventWithSlots
		if err := rows.Scan(
			&e.ID, &e.Title, &e.Description,
			&e.CreatedBy, &e.Version, &e.CreatedAt,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}

		events = append(events, e)
		ids = append(ids, e.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if len(events) == 0 {
		return events, nil
	}

	slotRows, err := db.Query(ctx,
		`SELECT id, event_id, date_time, max_bookings, current_bookings, version, created_at
		 FROM slots
		 WHERE event_id = ANY($1)
		 ORDER BY date_time`,
		ids,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer slotRows.Close()

	byEvent := make(map[uuid.UUID][]domain.Slot, len(events))
	for slotRows.Next() {
		var s domain.Slot
		if err := slotRows.Scan(
			&s.ID, &s.EventID, &s.DateTime, &s.MaxBookings,
			&s.CurrentBookings, &s.Version, &s.CreatedAt,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}

		byEvent[s.EventID] = append(byEvent[s.EventID], s)
	}
	if err := slotRows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	for i := range events {
		events[i].Slots = byEvent[events[i].ID]
	}

	return events, nil
}

// Availability reports, per slot of the event, how many CONFIRMED
// bookings exist against the slot's capacity. Counts come from the live
// bookings table, not the cached counter.
//
// Returns:
//   - []domain.SlotAvailability: one entry per slot, ordered by time.
//   - error: repository.ErrNotFound if the event does not exist.
func (r *EventRepo) Availability(
	ctx context.Context,
	eventID uuid.UUID,
) ([]domain.SlotAvailability, error) {
	const op = "postgres.EventRepo.Availability"

	db := r.handle()

	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`,
		eventID,
	).Scan(&exists); err != nil {
		return nil, wrapDBErr(op, err)
	}

	if !exists {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	rows, err := db.Query(ctx,
		`SELECT s.id, s.date_time, s.max_bookings,
		        COUNT(b.id) FILTER (WHERE b.status = 'CONFIRMED')
		 FROM slots s
		 LEFT JOIN bookings b ON b.slot_id = s.id
		 WHERE s.event_id = $1
		 GROUP BY s.id, s.date_time, s.max_bookings
		 ORDER BY s.date_time`,
		eventID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.SlotAvailability
	for rows.Next() {
		var a domain.SlotAvailability
		if err := rows.Scan(&a.SlotID, &a.DateTime, &a.MaxBookings, &a.Confirmed); err != nil {
			return nil, wrapDBErr(op, err)
		}

		a.Available = int64(a.MaxBookings) - a.Confirmed
		if a.Available < 0 {
			a.Available = 0
		}

		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// GetSlot retrieves a single slot, used by the booking endpoint to
// reject past slots before engaging the engine.
func (r *EventRepo) GetSlot(ctx context.Context, id uuid.UUID) (*domain.Slot, error) {
	const op = "postgres.EventRepo.GetSlot"

	db := r.handle()

	var s domain.Slot
	err := db.QueryRow(ctx,
		`SELECT id, event_id, date_time, max_bookings, current_bookings, version, created_at
		 FROM slots WHERE id = $1`,
		id,
	).Scan(
		&s.ID, &s.EventID, &s.DateTime, &s.MaxBookings,
		&s.CurrentBookings, &s.Version, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		return nil, wrapDBErr(op, err)
	}

	return &s, nil
}
