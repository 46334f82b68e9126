package service

import (
	"log/slog"

	postgres "github.com/avelychko/slotbook/internal/repository/postgres"
	redis "github.com/avelychko/slotbook/internal/repository/redis"
	redisx "github.com/avelychko/slotbook/internal/redis"
	"github.com/avelychko/slotbook/internal/service/booking"
	"github.com/avelychko/slotbook/internal/service/events"
	"github.com/avelychko/slotbook/internal/service/query"
)

type Services struct {
	Booking *booking.Service
	Events  *events.Service
	Query   *query.Service
}

type Config struct {
	Booking booking.Config
	Events  events.Config
	Query   query.Config
}

func NewServices(
	store *postgres.Store,
	cache *redis.Cache,
	pubsub *redisx.EventsPubSub,
	logger *slog.Logger,
	cfg Config,
) *Services {
	return &Services{
		Booking: booking.New(store, cache, pubsub, logger, cfg.Booking),
		Events:  events.New(store, cache, cfg.Events),
		Query:   query.New(store, cfg.Query),
	}
}
