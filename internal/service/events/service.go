package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/avelychko/slotbook/internal/domain"
	"github.com/avelychko/slotbook/internal/repository"
	postgresrepo "github.com/avelychko/slotbook/internal/repository/postgres"
	redisrepo "github.com/avelychko/slotbook/internal/repository/redis"
	redisx "github.com/avelychko/slotbook/internal/redis"
	"github.com/avelychko/slotbook/internal/uow"
)

type Config struct {
	EventSummaryTTL time.Duration
	AvailabilityTTL time.Duration
	DefaultPage     int
	MaxPage         int
}

type Service struct {
	store *postgresrepo.Store
	cache *redisrepo.Cache
	uow   *uow.UoW
	cfg   Config
}

func New(store *postgresrepo.Store, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.EventSummaryTTL <= 0 {
		cfg.EventSummaryTTL = 60 * time.Second
	}

	if cfg.AvailabilityTTL <= 0 {
		cfg.AvailabilityTTL = 15 * time.Second
	}

	if cfg.DefaultPage <= 0 {
		cfg.DefaultPage = 50
	}

	if cfg.MaxPage <= 0 {
		cfg.MaxPage = 200
	}

	return &Service{
		store: store,
		cache: cache,
		uow:   uow.NewUoW(store),
		cfg:   cfg,
	}
}

type SlotInput struct {
	DateTime    time.Time
	MaxBookings int
}

// CreateEventWithSlots creates an event and all its slots in one
// transaction. Slots start at version 0 with zero bookings; after this
// point only the reservation engine touches them.
//
// Returns:
//   - *domain.EventWithSlots: the created event with its slots, ordered by time.
//   - error: events.ErrEventConflict on a uniqueness conflict.
func (s *Service) CreateEventWithSlots(
	ctx context.Context,
	title, description, createdBy string,
	slots []SlotInput,
) (*domain.EventWithSlots, error) {
	const op = "service.events.CreateEventWithSlots"

	if len(slots) == 0 {
		return nil, fmt.Errorf("%s: at least one slot is required", op)
	}

	var out *domain.EventWithSlots

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		e, err := s.store.Events().With(tx).CreateEvent(ctx, title, description, createdBy)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%s:%w", op, ErrEventConflict)
			}

			return fmt.Errorf("%s:%w", op, err)
		}

		in := make([]domain.Slot, 0, len(slots))
		for _, si := range slots {
			in = append(in, domain.Slot{
				DateTime:    si.DateTime,
				MaxBookings: si.MaxBookings,
			})
		}

		created, err := s.store.Events().With(tx).CreateSlots(ctx, e.ID, in)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		out = &domain.EventWithSlots{Event: *e, Slots: created}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// GetEvent retrieves an event with its upcoming slots, through the
// cache.
//
// Returns:
//   - *domain.EventWithSlots: the event when found.
//   - error: events.ErrEventNotFound if the event is not found.
func (s *Service) GetEvent(ctx context.Context, id uuid.UUID) (*domain.EventWithSlots, error) {
	const op = "service.events.GetEvent"

	key := redisx.KeyEventSummary(id.String())

	event, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		key,
		s.cfg.EventSummaryTTL,
		func(ctx context.Context) (domain.EventWithSlots, error) {
			e, err := s.store.Events().GetEvent(ctx, id, true)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.EventWithSlots{}, ErrEventNotFound
				}

				return domain.EventWithSlots{}, err
			}

			return *e, nil
		},
	)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrEventNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &event, nil
}

// ListEvents lists events, optionally only those that still have an
// upcoming slot.
func (s *Service) ListEvents(
	ctx context.Context,
	futureOnly bool,
	limit, offset int,
) ([]domain.EventWithSlots, error) {
	const op = "service.events.ListEvents"

	if limit <= 0 {
		limit = s.cfg.DefaultPage
	}

	if limit > s.cfg.MaxPage {
		limit = s.cfg.MaxPage
	}

	list, err := s.store.Events().ListEvents(ctx, futureOnly, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return list, nil
}

// Availability returns per-slot confirmed counts for the event,
// through a short-lived cache. The counts are informational; admission
// is always re-decided transactionally by the engine.
//
// Returns:
//   - []domain.SlotAvailability: one entry per slot.
//   - error: events.ErrEventNotFound if the event is not found.
func (s *Service) Availability(ctx context.Context, eventID uuid.UUID) ([]domain.SlotAvailability, error) {
	const op = "service.events.Availability"

	key := redisx.KeyEventAvailability(eventID.String())

	avail, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		key,
		s.cfg.AvailabilityTTL,
		func(ctx context.Context) ([]domain.SlotAvailability, error) {
			a, err := s.store.Events().Availability(ctx, eventID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return nil, ErrEventNotFound
				}

				return nil, err
			}

			return a, nil
		},
	)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrEventNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return avail, nil
}

// GetSlot retrieves one slot.
//
// Returns:
//   - *domain.Slot: the slot when found.
//   - error: events.ErrSlotNotFound if the slot is not found.
func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*domain.Slot, error) {
	const op = "service.events.GetSlot"

	slot, err := s.store.Events().GetSlot(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrSlotNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return slot, nil
}
