// Package worker executes the jobs scheduled for stored uploads, either from
// the asynq server or from the in-process runner.
package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dharsanguruparan/VaultForm/internal/model"
	pdfutil "github.com/dharsanguruparan/VaultForm/internal/pdf"
	"github.com/dharsanguruparan/VaultForm/internal/queue"
	"github.com/dharsanguruparan/VaultForm/internal/storage"
)

// Handlers runs jobs against the metadata and blob stores.
type Handlers struct {
	meta    storage.MetadataStore
	blobs   storage.BlobStore
	extract func([]byte) (string, error)
}

// NewHandlers constructs Handlers.
func NewHandlers(meta storage.MetadataStore, blobs storage.BlobStore) *Handlers {
	return &Handlers{meta: meta, blobs: blobs, extract: pdfutil.ExtractText}
}

// Handle dispatches on the job type.
func (h *Handlers) Handle(ctx context.Context, job queue.Job) error {
	switch job.Type {
	case queue.TaskExtract:
		return h.Extract(ctx, job.Payload)
	case queue.TaskRemind:
		return h.Remind(ctx, job.Payload)
	case queue.TaskExpire:
		return h.Expire(ctx, job.Payload)
	default:
		return fmt.Errorf("unknown task type %q", job.Type)
	}
}

// Extract stores the text of a PDF upload on its record.
func (h *Handlers) Extract(ctx context.Context, p queue.Payload) error {
	failure := func(err error) error {
		log.Error().Err(err).Str("upload_id", p.UploadID).Msg("extract failed")
		_ = h.meta.UpdateStatus(ctx, p.UploadID, model.StatusFailed, err.Error())
		return err
	}
	if err := h.meta.UpdateStatus(ctx, p.UploadID, model.StatusProcessing, "extracting text"); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	data, err := h.blobs.Get(ctx, p.ObjectKey)
	if err != nil {
		return failure(err)
	}
	text, err := h.extract(data)
	if err != nil {
		return failure(err)
	}
	if err := h.meta.SaveContent(ctx, p.UploadID, text); err != nil {
		return failure(err)
	}
	log.Info().Str("upload_id", p.UploadID).Int("bytes", len(text)).Msg("upload text extracted")
	return nil
}

// Remind records that the reminder date was reached. Expired uploads are
// left alone.
func (h *Handlers) Remind(ctx context.Context, p queue.Payload) error {
	u, err := h.meta.Get(ctx, p.UploadID)
	if err != nil {
		return fmt.Errorf("load upload: %w", err)
	}
	if u.Status == model.StatusExpired {
		return nil
	}
	if err := h.meta.UpdateStatus(ctx, u.ID, model.StatusReminded, "reminder due for "+u.FileName); err != nil {
		return fmt.Errorf("mark reminded: %w", err)
	}
	log.Info().Str("upload_id", u.ID).Str("file_name", u.FileName).Msg("upload reminder due")
	return nil
}

// Expire deletes the blob and marks the upload expired.
func (h *Handlers) Expire(ctx context.Context, p queue.Payload) error {
	if err := h.blobs.Delete(ctx, p.ObjectKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete object: %w", err)
	}
	if err := h.meta.UpdateStatus(ctx, p.UploadID, model.StatusExpired, "expired"); err != nil {
		return fmt.Errorf("mark expired: %w", err)
	}
	log.Info().Str("upload_id", p.UploadID).Str("object_key", p.ObjectKey).Msg("upload expired")
	return nil
}
