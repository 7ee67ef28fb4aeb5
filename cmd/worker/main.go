// Command worker executes upload jobs queued in Redis.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/dharsanguruparan/VaultForm/internal/bootstrap"
	"github.com/dharsanguruparan/VaultForm/internal/config"
	"github.com/dharsanguruparan/VaultForm/internal/logging"
	"github.com/dharsanguruparan/VaultForm/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Setup(os.Stderr, "info", true)
	cfg, err := config.LoadServer(os.Getenv("VAULTFORM_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Setup(os.Stderr, cfg.LogLevel, true)

	opt, err := bootstrap.RedisOpt(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("worker needs redis")
	}
	stores, err := bootstrap.OpenStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open stores")
	}
	defer stores.Close()
	if !stores.Shared() {
		log.Warn().Msg("worker is using in-memory stores; configure postgres and s3 to share uploads with the api")
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.Workers,
		Logger:      worker.NewAsynqLogger(log.Logger),
	})
	processor := worker.NewProcessor(worker.NewHandlers(stores.Meta, stores.Blobs))

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	log.Info().Str("redis", cfg.RedisAddr).Int("concurrency", cfg.Workers).Msg("worker starting")
	if err := server.Run(processor.Handler()); err != nil {
		log.Error().Err(err).Msg("worker stopped")
		stop()
		os.Exit(1)
	}
}
