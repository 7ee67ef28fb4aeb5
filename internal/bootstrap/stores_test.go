package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/VaultForm/internal/config"
	"github.com/dharsanguruparan/VaultForm/internal/s3storage"
	"github.com/dharsanguruparan/VaultForm/internal/storage"
)

func TestOpenStoresInMemory(t *testing.T) {
	s, err := OpenStores(context.Background(), &config.Server{StorageBackend: "memory"})
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &storage.MemoryStore{}, s.Meta)
	assert.IsType(t, &storage.MemoryBlobs{}, s.Blobs)
	assert.False(t, s.Shared())
}

func TestOpenStoresBadDatabaseURL(t *testing.T) {
	_, err := OpenStores(context.Background(), &config.Server{DatabaseURL: "postgres://%zz", StorageBackend: "memory"})
	assert.ErrorContains(t, err, "connect database")
}

func TestSharedWithS3(t *testing.T) {
	blobs, err := s3storage.New(&config.Server{S3Endpoint: "localhost:9000", Bucket: "b", S3Region: "us-east-1"})
	require.NoError(t, err)
	s := &Stores{Meta: storage.NewMemoryStore(), Blobs: blobs}
	assert.False(t, s.Shared(), "memory metadata is still process local")
}

func TestRedisOpt(t *testing.T) {
	_, err := RedisOpt(&config.Server{})
	assert.Error(t, err)

	opt, err := RedisOpt(&config.Server{RedisAddr: "localhost:6379", RedisDB: 2})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opt.Addr)
	assert.Equal(t, 2, opt.DB)
}
