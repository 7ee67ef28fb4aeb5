// Package storage defines where accepted uploads are kept and provides the
// in-memory implementations used in development and tests.
package storage

import (
	"context"
	"errors"
	"io"

	"github.com/dharsanguruparan/VaultForm/internal/model"
)

// ErrNotFound is returned when an upload or object does not exist.
var ErrNotFound = errors.New("not found")

// BlobStore keeps upload bytes by object key.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// MetadataStore keeps StoredUpload records.
type MetadataStore interface {
	Create(ctx context.Context, u *model.StoredUpload) error
	Get(ctx context.Context, id string) (*model.StoredUpload, error)
	UpdateStatus(ctx context.Context, id string, status model.UploadStatus, msg string) error
	SaveContent(ctx context.Context, id, content string) error
}
