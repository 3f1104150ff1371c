package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/subscription-manager/internal/app/expirer"
	"github.com/magabrotheeeer/subscription-manager/internal/config"
	"github.com/magabrotheeeer/subscription-manager/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.New(cfg.Env)

	logger.Info("starting expirer", slog.String("env", cfg.Env), slog.Duration("interval", cfg.Interval))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := expirer.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize expirer", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("expirer stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("expirer stopped gracefully")
}
