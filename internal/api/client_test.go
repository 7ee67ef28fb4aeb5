package api_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/VaultForm/internal/api"
	"github.com/dharsanguruparan/VaultForm/internal/config"
	"github.com/dharsanguruparan/VaultForm/internal/processing"
	"github.com/dharsanguruparan/VaultForm/internal/signing"
	"github.com/dharsanguruparan/VaultForm/internal/storage"
	"github.com/dharsanguruparan/VaultForm/internal/upload"
	"github.com/dharsanguruparan/VaultForm/internal/worker"
)

// newStack runs the API with in-memory stores and the in-process runner, the
// same wiring cmd/server uses without Postgres or Redis.
func newStack(t *testing.T) (*upload.Client, *signing.Signer, *storage.MemoryBlobs) {
	t.Helper()
	logger := zerolog.Nop()
	meta := storage.NewMemoryStore()
	blobs := storage.NewMemoryBlobs()
	signer := signing.NewSigner([]byte("e2e"))

	runner := processing.New(worker.NewHandlers(meta, blobs).Handle, 1)
	ctx, cancel := context.WithCancel(context.Background())
	runner.Start(ctx)
	t.Cleanup(func() {
		cancel()
		runner.Wait()
	})

	cfg := &config.Server{MaxFileSize: 1 << 20}
	srv := httptest.NewServer(api.New(cfg, api.Deps{
		Signer: signer, Meta: meta, Blobs: blobs, Scheduler: runner, Logger: &logger,
	}).Handler())
	t.Cleanup(srv.Close)

	client := upload.NewClient(srv.URL+config.UploadPath, upload.WithLogger(logger), upload.WithTimeout(5*time.Second))
	return client, signer, blobs
}

func TestClientAgainstAPI(t *testing.T) {
	client, signer, _ := newStack(t)
	expire := time.Now().Add(24 * time.Hour)
	rec := &upload.Record{
		ID:       "1",
		FileName: "Notes",
		TagNames: []string{"work"},
		File:     upload.FromBytes("notes.txt", "text/plain", []byte("hello")),
		ExpireAt: &expire,
	}

	out := client.Submit(context.Background(), rec, signer.Issue("alice", time.Hour))
	assert.Equal(t, upload.Outcome{Success: true, Message: "File uploaded successfully", Kind: upload.KindSuccess}, out)
}

func TestClientAgainstAPIFailures(t *testing.T) {
	client, signer, _ := newStack(t)
	file := upload.FromBytes("notes.txt", "text/plain", []byte("hello"))

	tests := []struct {
		name  string
		rec   *upload.Record
		token string
		kind  upload.Kind
		msg   string
	}{
		{
			name:  "expired token",
			rec:   &upload.Record{FileName: "Notes", File: file},
			token: signer.Issue("alice", -time.Second),
			kind:  upload.KindAuthError,
			msg:   "Upload failed: Token is invalid or expired",
		},
		{
			name:  "missing token",
			rec:   &upload.Record{FileName: "Notes", File: file},
			token: "",
			kind:  upload.KindValidationError,
			msg:   "Upload failed: Authentication credentials were not provided.",
		},
		{
			name:  "blank name",
			rec:   &upload.Record{FileName: "   ", File: file},
			token: signer.Issue("alice", time.Hour),
			kind:  upload.KindValidationError,
			msg:   "Upload failed: fileName: This field may not be blank.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := client.Submit(context.Background(), tt.rec, tt.token)
			assert.False(t, out.Success)
			assert.Equal(t, tt.kind, out.Kind)
			assert.Equal(t, tt.msg, out.Message)
		})
	}
}

func TestExpiryJobRunsInProcess(t *testing.T) {
	client, signer, blobs := newStack(t)
	expire := time.Now().Add(100 * time.Millisecond)
	rec := &upload.Record{
		FileName: "Short lived",
		File:     upload.FromBytes("tmp.txt", "text/plain", []byte("bye")),
		ExpireAt: &expire,
	}
	require.True(t, client.Submit(context.Background(), rec, signer.Issue("alice", time.Hour)).Success)
	assert.Equal(t, 1, blobs.Len())

	assert.Eventually(t, func() bool { return blobs.Len() == 0 }, 3*time.Second, 20*time.Millisecond)
}
