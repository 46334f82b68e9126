package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avelychko/slotbook/internal/config"
	"github.com/avelychko/slotbook/internal/postgres"
	"github.com/avelychko/slotbook/internal/rabbitmq"
	redisx "github.com/avelychko/slotbook/internal/redis"
	postgresrepo "github.com/avelychko/slotbook/internal/repository/postgres"
	redisrepo "github.com/avelychko/slotbook/internal/repository/redis"
	"github.com/avelychko/slotbook/internal/service"
	"github.com/avelychko/slotbook/internal/service/booking"
	httpgin "github.com/avelychko/slotbook/internal/transport/http/gin"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	publisher  *rabbitmq.Publisher
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.Name,
		cfg.Postgres.SSLMode,
	)

	pgxPool, err := postgres.New(context.Background(), postgres.Config{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redisx.New(context.Background(), redisx.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Confirmation messages are best-effort: without a broker the
	// service still books, it just doesn't notify.
	var publisher *rabbitmq.Publisher
	if cfg.RabbitMQ.URL != "" {
		publisher, err = rabbitmq.NewPublisher(cfg.RabbitMQ.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize rabbitmq: %w", err)
		}
	} else {
		logger.Warn("RABBITMQ_URL not set, booking confirmations disabled")
	}

	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.New(rdb)
	pubsub := redisx.NewEventsPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, "rl", 10, 1*time.Minute)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)

	services := service.NewServices(store, cache, pubsub, logger, service.Config{
		Booking: booking.Config{
			MaxRetries: cfg.Booking.MaxRetries,
			BaseDelay:  cfg.Booking.BaseDelay,
			MaxDelay:   cfg.Booking.MaxDelay,
			TxTimeout:  cfg.Booking.TxTimeout,
		},
	})

	router := httpgin.NewRouter(services, idempotencyStore, limiter, publisher, logger)

	return &App{
		cfg:       cfg,
		logger:    logger,
		publisher: publisher,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")

		if a.publisher != nil {
			a.publisher.Close()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
