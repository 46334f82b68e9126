package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/avelychko/slotbook/internal/domain"
	postgresrepo "github.com/avelychko/slotbook/internal/repository/postgres"
	redisrepo "github.com/avelychko/slotbook/internal/repository/redis"
	redisx "github.com/avelychko/slotbook/internal/redis"
	"github.com/avelychko/slotbook/internal/uow"
)

// Attempter runs one complete reservation attempt. An attempt is
// all-or-nothing: on success the slot counter, both versions and the
// booking row have committed together; on any error nothing changed.
type Attempter interface {
	Attempt(ctx context.Context, slotID, userID uuid.UUID) (*domain.BookingDetail, error)
}

// TxAttempter executes attempts against postgres with a bounded timeout
// and, after commit, invalidates the event's cache entries and publishes
// the change signal.
type TxAttempter struct {
	store     *postgresrepo.Store
	uow       *uow.UoW
	cache     *redisrepo.Cache
	pubsub    *redisx.EventsPubSub
	txTimeout time.Duration
}

func NewTxAttempter(
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	pubsub *redisx.EventsPubSub,
	txTimeout time.Duration,
) *TxAttempter {
	if txTimeout <= 0 {
		txTimeout = 5 * time.Second
	}

	return &TxAttempter{
		store:     store,
		uow:       uow.NewUoW(store),
		cache:     cache,
		pubsub:    pubsub,
		txTimeout: txTimeout,
	}
}

func (a *TxAttempter) Attempt(
	ctx context.Context,
	slotID, userID uuid.UUID,
) (*domain.BookingDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, a.txTimeout)
	defer cancel()

	var detail *domain.BookingDetail

	err := a.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		d, err := a.store.Reservations().With(tx).ReserveSlot(ctx, slotID, userID)
		if err != nil {
			return err
		}

		detail = d

		after(func(ctx context.Context) {
			if a.cache != nil {
				_ = a.cache.InvalidateEvent(ctx, d.Event.ID.String())
			}
			if a.pubsub != nil {
				_ = a.pubsub.PublishEventChanged(ctx, d.Event.ID, d.Slot.ID)
			}
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return detail, nil
}
