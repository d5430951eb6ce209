package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/http/handlers"
	httpapi "server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/infra/credentials"
	"server/internal/infra/geoip"
	"server/internal/middleware"
	"server/internal/orchestrator"
	"server/internal/providers/kling"
	"server/internal/providers/trainer"
	"server/internal/statusstore"
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
		logger.Fatal().Err(err).Msg("api: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)

	accessKey, secretKey := cfg.KlingAccessKey, cfg.KlingSecretKey
	if accessKey == "" || secretKey == "" {
		credStore := credentials.NewStore(runner)
		ak, sk, err := credStore.KlingKeyPair(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("api: failed to load vendor key pair from store")
		} else if ak != "" && sk != "" {
			accessKey, secretKey = ak, sk
		}
	}
	if accessKey == "" || secretKey == "" {
		logger.Warn().Msg("api: vendor key pair missing, augmentation endpoints will refuse requests")
	}

	signer := kling.NewSigner(accessKey, secretKey)
	vendor, err := kling.NewClient(kling.Options{
		Signer:  signer,
		BaseURL: cfg.KlingBaseURL,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure vendor client")
	}

	batch := orchestrator.NewBatch(vendor, orchestrator.Options{
		SubmitSpacing: cfg.SubmitSpacing,
		PollInterval:  cfg.PollInterval,
		PollDeadline:  cfg.PollDeadline,
	}, logger)

	trainerClient := trainer.NewClient(trainer.Options{
		BaseURL: cfg.TrainerBaseURL,
		Logger:  &logger,
	})

	app := &handlers.App{
		Cfg:     cfg,
		Logger:  logger,
		Vendor:  vendor,
		Batch:   batch,
		Store:   statusstore.NewPostgres(runner),
		Trainer: trainerClient,
	}

	var lookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("api: geoip resolver disabled")
	} else if resolver != nil {
		lookup = resolver.CountryCode
	}

	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		AllowedOrigins:  splitOrigins(os.Getenv("ALLOWED_ORIGINS")),
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   lookup,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func splitOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
