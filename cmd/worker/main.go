package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/infra"
	"server/internal/providers/trainer"
	"server/internal/statusstore"
	"server/internal/training"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)

	trainerClient := trainer.NewClient(trainer.Options{
		BaseURL: cfg.TrainerBaseURL,
		Logger:  &logger,
	})

	if status, err := trainerClient.Health(ctx); err != nil {
		logger.Warn().Err(err).Msg("worker: training backend unreachable at startup")
	} else {
		logger.Info().Str("status", status).Msg("worker: training backend health")
	}

	worker := training.NewRunner(statusstore.NewPostgres(runner), trainerClient, logger)

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
