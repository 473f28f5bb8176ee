package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kalendasha/kalendasha/internal/app"
	"github.com/kalendasha/kalendasha/internal/config"
	"github.com/kalendasha/kalendasha/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	logger.Info("Starting kalendasha",
		zap.String("environment", cfg.Environment),
		zap.Duration("sweep_interval", cfg.SweepInterval),
		zap.Int("materialize_horizon_days", cfg.MaterializeHorizonDays))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := app.NewPool(ctx, cfg.DBDSN, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	migrator, err := app.NewMigrator(pool, cfg.MigrationsPath, logger)
	if err != nil {
		logger.Fatal("Failed to create migrator", zap.Error(err))
	}
	if err := migrator.Run(ctx); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	migrator.Close()

	core := app.NewCore(pool, service.SystemClock(), logger)

	scheduler := app.NewScheduler(core.Lessons, core.Materializer,
		cfg.SweepInterval, cfg.MaterializeHorizonDays, logger)
	scheduler.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	scheduler.Stop()
	cancel()
}
