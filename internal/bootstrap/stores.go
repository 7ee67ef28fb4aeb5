// Package bootstrap builds the stores and scheduler selected by the server
// configuration. Both the API and the worker binaries start from here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/dharsanguruparan/VaultForm/internal/config"
	"github.com/dharsanguruparan/VaultForm/internal/database"
	"github.com/dharsanguruparan/VaultForm/internal/repository"
	"github.com/dharsanguruparan/VaultForm/internal/s3storage"
	"github.com/dharsanguruparan/VaultForm/internal/storage"
)

// Stores holds the opened metadata and blob stores.
type Stores struct {
	Meta  storage.MetadataStore
	Blobs storage.BlobStore

	closers []func()
}

// Close releases every connection opened by OpenStores.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Shared reports whether the stores can be seen by other processes.
func (s *Stores) Shared() bool {
	_, memMeta := s.Meta.(*storage.MemoryStore)
	_, memBlobs := s.Blobs.(*storage.MemoryBlobs)
	return !memMeta && !memBlobs
}

// OpenStores connects Postgres when a database URL is set and MinIO when the
// s3 backend is selected, falling back to in-memory stores otherwise.
func OpenStores(ctx context.Context, cfg *config.Server) (*Stores, error) {
	s := &Stores{}
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		if err := database.EnsureSchema(ctx, pool); err != nil {
			s.Close()
			return nil, err
		}
		s.Meta = repository.NewUploadRepository(pool)
		log.Info().Msg("metadata stored in postgres")
	} else {
		s.Meta = storage.NewMemoryStore()
		log.Warn().Msg("no database url configured, metadata kept in memory")
	}

	switch cfg.StorageBackend {
	case "s3":
		blobs, err := s3storage.New(cfg)
		if err != nil {
			s.Close()
			return nil, err
		}
		if err := blobs.EnsureBucket(ctx); err != nil {
			s.Close()
			return nil, err
		}
		s.Blobs = blobs
		log.Info().Str("endpoint", cfg.S3Endpoint).Str("bucket", cfg.Bucket).Msg("blobs stored in s3")
	default:
		s.Blobs = storage.NewMemoryBlobs()
		log.Warn().Msg("blobs kept in memory")
	}
	return s, nil
}

// RedisOpt returns the asynq connection options for cfg.
func RedisOpt(cfg *config.Server) (asynq.RedisClientOpt, error) {
	if cfg.RedisAddr == "" {
		return asynq.RedisClientOpt{}, errors.New("redis address not configured (set VAULTFORM_REDIS_ADDR)")
	}
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}
