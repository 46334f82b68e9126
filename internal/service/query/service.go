package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/avelychko/slotbook/internal/domain"
	"github.com/avelychko/slotbook/internal/repository"
	postgresrepo "github.com/avelychko/slotbook/internal/repository/postgres"
)

type Config struct {
	DefaultPage int
	MaxPage     int
}

type Service struct {
	store *postgresrepo.Store
	cfg   Config
}

func New(store *postgresrepo.Store, cfg Config) *Service {
	if cfg.DefaultPage <= 0 {
		cfg.DefaultPage = 50
	}

	if cfg.MaxPage <= 0 {
		cfg.MaxPage = 100
	}

	return &Service{
		store: store,
		cfg:   cfg,
	}
}

// UserBookingsByEmail lists a user's bookings with their slot and event
// data, newest first.
//
// Returns:
//   - []domain.BookingDetail: the bookings matching the filter.
//   - error: query.ErrUserNotFound if no user has this email.
func (s *Service) UserBookingsByEmail(
	ctx context.Context,
	email string,
	status *domain.BookingStatus,
	futureOnly bool,
	limit, offset int,
) ([]domain.BookingDetail, error) {
	const op = "service.query.UserBookingsByEmail"

	if limit <= 0 {
		limit = s.cfg.DefaultPage
	}

	if limit > s.cfg.MaxPage {
		limit = s.cfg.MaxPage
	}

	user, err := s.store.Users().FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrUserNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	bookings, err := s.store.Users().ListBookings(ctx, user.ID, postgresrepo.BookingFilter{
		Status:     status,
		FutureOnly: futureOnly,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for i := range bookings {
		bookings[i].User = *user
	}

	return bookings, nil
}

// UserBookingStats aggregates a user's bookings by status and time.
//
// Returns:
//   - *domain.User, *domain.UserBookingStats: the user and their stats.
//   - error: query.ErrUserNotFound if the user does not exist.
func (s *Service) UserBookingStats(
	ctx context.Context,
	userID uuid.UUID,
) (*domain.User, *domain.UserBookingStats, error) {
	const op = "service.query.UserBookingStats"

	user, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, fmt.Errorf("%s:%w", op, ErrUserNotFound)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	stats, err := s.store.Users().BookingStats(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	stats.MemberSince = user.CreatedAt

	return user, stats, nil
}

// FindOrCreateUser resolves the booking requester by email, creating
// the user on first contact.
func (s *Service) FindOrCreateUser(ctx context.Context, email, name string) (*domain.User, error) {
	const op = "service.query.FindOrCreateUser"

	user, err := s.store.Users().FindOrCreate(ctx, email, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}
