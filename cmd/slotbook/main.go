package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/avelychko/slotbook/docs"
	"github.com/avelychko/slotbook/internal/app"
	"github.com/avelychko/slotbook/internal/config"
)

// @title Slotbook API
// @version 1.0
// @description Booking service for capacity-bounded time slots with optimistic concurrency control.
// @host localhost:8080
// @BasePath /api
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(context.Background()); err != nil {
		logger.Error("application finished with error", "error", err)
		os.Exit(1)
	}
}
