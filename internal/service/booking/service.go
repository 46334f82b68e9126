package booking

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/avelychko/slotbook/internal/domain"
	postgresrepo "github.com/avelychko/slotbook/internal/repository/postgres"
	redisrepo "github.com/avelychko/slotbook/internal/repository/redis"
	redisx "github.com/avelychko/slotbook/internal/redis"
)

type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	TxTimeout  time.Duration
}

// Service coordinates slot reservations under contention. It holds no
// lock across the read-check-write sequence: correctness comes from the
// storage layer's Serializable isolation and the version guards, and
// conflicts are absorbed by a bounded retry loop with exponential
// backoff. The in-flight tracker is scoped to this instance and feeds
// telemetry only.
type Service struct {
	attempt    Attempter
	backoff    Backoff
	tracker    *InFlightTracker
	logger     *slog.Logger
	maxRetries int
}

func New(
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	pubsub *redisx.EventsPubSub,
	logger *slog.Logger,
	cfg Config,
) *Service {
	return newService(
		NewTxAttempter(store, cache, pubsub, cfg.TxTimeout),
		logger,
		cfg,
	)
}

func newService(att Attempter, logger *slog.Logger, cfg Config) *Service {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}

	if cfg.MaxDelay <= 0 || cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = 2 * time.Second
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		attempt:    att,
		backoff:    Backoff{Base: cfg.BaseDelay, Max: cfg.MaxDelay},
		tracker:    NewInFlightTracker(),
		logger:     logger,
		maxRetries: cfg.MaxRetries,
	}
}

// Reserve books one seat in the slot for the user.
//
// Each attempt re-runs the full transactional sequence from scratch:
// capacity and duplicate checks are never carried over from a previous
// attempt. Version conflicts are retried up to MaxRetries times with
// backoff; business rejections return immediately.
//
// Returns:
//   - *domain.BookingDetail: the confirmed booking with denormalized
//     slot/event/user data. The engine performs no further I/O after a
//     success; notifying the user is the caller's job.
//   - error: always a *Failure carrying one of the closed set of codes.
func (s *Service) Reserve(
	ctx context.Context,
	slotID, userID uuid.UUID,
) (*domain.BookingDetail, error) {
	requestID := uuid.NewString()
	start := time.Now()

	inFlight := s.tracker.Enter(slotID)
	defer s.tracker.Exit(slotID)

	log := s.logger.With(
		slog.String("request_id", requestID),
		slog.String("slot_id", slotID.String()),
		slog.String("user_id", userID.String()),
	)

	log.Info("reservation started", slog.Int("in_flight", inFlight))

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		attemptStart := time.Now()

		detail, err := s.attempt.Attempt(ctx, slotID, userID)
		latency := time.Since(attemptStart)

		if err == nil {
			log.Info("attempt committed",
				slog.Int("attempt", attempt),
				slog.Duration("latency", latency),
			)
			log.Info("reservation completed",
				slog.Int("retries", attempt-1),
				slog.Duration("duration", time.Since(start)),
			)
			return detail, nil
		}

		switch classify(err) {
		case outcomeRetryable:
			log.Warn("optimistic conflict",
				slog.Int("attempt", attempt),
				slog.Duration("latency", latency),
			)

			if attempt == s.maxRetries {
				break
			}

			if err := s.pause(ctx, s.backoff.Delay(attempt)); err != nil {
				f := failure(CodeUnexpected, "an unexpected error occurred, please try again", attempt)
				s.logSummary(log, f, start)
				return nil, f
			}

		case outcomeTerminal:
			f := terminalFailure(err, attempt-1)
			log.Info("attempt rejected",
				slog.Int("attempt", attempt),
				slog.Duration("latency", latency),
				slog.String("code", string(f.Code)),
			)
			s.logSummary(log, f, start)
			return nil, f

		default:
			log.Error("unexpected reservation error",
				slog.Int("attempt", attempt),
				slog.Duration("latency", latency),
				slog.Any("error", err),
			)
			f := failure(CodeUnexpected, "an unexpected error occurred, please try again", attempt-1)
			s.logSummary(log, f, start)
			return nil, f
		}
	}

	f := failure(
		CodeConflictExhausted,
		"booking conflict due to high demand, please try again",
		s.maxRetries,
	)
	s.logSummary(log, f, start)
	return nil, f
}

// InFlight reports how many requests are currently racing for the slot.
func (s *Service) InFlight(slotID uuid.UUID) int {
	return s.tracker.InFlight(slotID)
}

func (s *Service) logSummary(log *slog.Logger, f *Failure, start time.Time) {
	log.Warn("reservation failed",
		slog.String("code", string(f.Code)),
		slog.Int("retries", f.RetryCount),
		slog.Duration("duration", time.Since(start)),
	)
}

// pause suspends only this request; other in-flight attempts keep
// running.
func (s *Service) pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
