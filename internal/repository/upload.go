// Package repository is the Postgres implementation of storage.MetadataStore.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/VaultForm/internal/model"
	"github.com/dharsanguruparan/VaultForm/internal/storage"
)

// DB is the subset of pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ DB = (*pgxpool.Pool)(nil)

// UploadRepository wraps all SQL used by the API and worker.
type UploadRepository struct {
	db DB
}

var _ storage.MetadataStore = (*UploadRepository)(nil)

// NewUploadRepository constructs a repository.
func NewUploadRepository(db DB) *UploadRepository {
	return &UploadRepository{db: db}
}

// Create inserts a stored upload.
func (r *UploadRepository) Create(ctx context.Context, u *model.StoredUpload) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.Status == "" {
		u.Status = model.StatusStored
	}
	tags := u.TagNames
	if tags == nil {
		tags = []string{}
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO uploads (id, owner, file_name, original_file_name, file_type, content_type, size,
			tag_names, object_key, status, reminder, expire_at, content, message, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, u.ID, u.Owner, u.FileName, u.OriginalFileName, u.FileType, u.ContentType, u.Size,
		tags, u.ObjectKey, u.Status, u.Reminder, u.ExpireAt, u.Content, u.Message, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert upload: %w", err)
	}
	return nil
}

// Get returns an upload by id.
func (r *UploadRepository) Get(ctx context.Context, id string) (*model.StoredUpload, error) {
	var u model.StoredUpload
	row := r.db.QueryRow(ctx, `
		SELECT id, owner, file_name, original_file_name, file_type, content_type, size, tag_names,
			object_key, status, reminder, expire_at, COALESCE(content,''), COALESCE(message,''),
			created_at, updated_at
		FROM uploads WHERE id=$1
	`, id)
	err := row.Scan(&u.ID, &u.Owner, &u.FileName, &u.OriginalFileName, &u.FileType, &u.ContentType,
		&u.Size, &u.TagNames, &u.ObjectKey, &u.Status, &u.Reminder, &u.ExpireAt, &u.Content,
		&u.Message, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("upload %s: %w", id, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("select upload: %w", err)
	}
	return &u, nil
}

// UpdateStatus sets status and message.
func (r *UploadRepository) UpdateStatus(ctx context.Context, id string, status model.UploadStatus, msg string) error {
	return r.exec(ctx, `UPDATE uploads SET status=$1, message=$2, updated_at=$3 WHERE id=$4`,
		status, msg, time.Now().UTC(), id)
}

// SaveContent stores extracted text and marks the upload ready.
func (r *UploadRepository) SaveContent(ctx context.Context, id, content string) error {
	return r.exec(ctx, `UPDATE uploads SET status=$1, content=$2, message='', updated_at=$3 WHERE id=$4`,
		model.StatusReady, content, time.Now().UTC(), id)
}

func (r *UploadRepository) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update upload: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
