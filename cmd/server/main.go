// Command server runs the VaultForm storage API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/dharsanguruparan/VaultForm/internal/api"
	"github.com/dharsanguruparan/VaultForm/internal/bootstrap"
	"github.com/dharsanguruparan/VaultForm/internal/config"
	"github.com/dharsanguruparan/VaultForm/internal/logging"
	"github.com/dharsanguruparan/VaultForm/internal/processing"
	"github.com/dharsanguruparan/VaultForm/internal/queue"
	"github.com/dharsanguruparan/VaultForm/internal/signing"
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

	signer := signing.NewSigner(cfg.SigningSecret)
	if cfg.GeneratedSecret {
		log.Warn().
			Str("token", signer.Issue("dev", cfg.TokenTTL)).
			Msg("no signing secret configured, generated one for this run; use this token")
	}

	stores, err := bootstrap.OpenStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open stores")
	}
	defer stores.Close()

	var scheduler queue.Scheduler
	if cfg.RedisAddr != "" {
		opt, err := bootstrap.RedisOpt(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("redis options")
		}
		client := asynq.NewClient(opt)
		defer client.Close()
		if !stores.Shared() {
			log.Warn().Msg("jobs go through redis but stores are in memory; the worker will not see uploads")
		}
		scheduler = queue.NewAsynqScheduler(client)
		log.Info().Str("redis", cfg.RedisAddr).Msg("jobs scheduled through asynq")
	} else {
		runner := processing.New(worker.NewHandlers(stores.Meta, stores.Blobs).Handle, cfg.Workers)
		runner.Start(ctx)
		defer runner.Wait()
		scheduler = runner
		log.Info().Int("workers", cfg.Workers).Msg("jobs run in process")
	}

	srv := api.New(cfg, api.Deps{
		Signer:    signer,
		Meta:      stores.Meta,
		Blobs:     stores.Blobs,
		Scheduler: scheduler,
	})
	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server stopped")
		stop()
		os.Exit(1)
	}
}
