package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/VaultForm/internal/model"
	"github.com/dharsanguruparan/VaultForm/internal/storage"
)

type execCall struct {
	sql  string
	args []any
}

type fakeDB struct {
	execs    []execCall
	affected int64
	row      []any
	rowErr   error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", f.affected)), nil
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return fakeRow{values: f.row, err: f.rowErr}
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r.values[i]))
	}
	return nil
}

func TestCreateDefaults(t *testing.T) {
	db := &fakeDB{affected: 1}
	repo := NewUploadRepository(db)

	u := &model.StoredUpload{ID: "u1", FileName: "Report"}
	require.NoError(t, repo.Create(context.Background(), u))

	assert.Equal(t, model.StatusStored, u.Status)
	assert.False(t, u.CreatedAt.IsZero())
	require.Len(t, db.execs, 1)
	args := db.execs[0].args
	require.Len(t, args, 16)
	assert.Equal(t, "u1", args[0])
	assert.Equal(t, []string{}, args[7], "nil tags are stored as an empty array")
}

func TestGet(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	expire := created.Add(48 * time.Hour)
	db := &fakeDB{row: []any{
		"u1", "alice", "Report", "report", "application/pdf", "application/pdf", int64(42),
		[]string{"tax"}, "uploads/x/report.pdf", model.StatusReady, (*time.Time)(nil), &expire,
		"text", "", created, created,
	}}
	repo := NewUploadRepository(db)

	u, err := repo.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Owner)
	assert.Equal(t, []string{"tax"}, u.TagNames)
	assert.Nil(t, u.Reminder)
	assert.Equal(t, expire, *u.ExpireAt)
	assert.Equal(t, model.StatusReady, u.Status)
}

func TestGetNotFound(t *testing.T) {
	repo := NewUploadRepository(&fakeDB{rowErr: pgx.ErrNoRows})
	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	repo = NewUploadRepository(&fakeDB{rowErr: errors.New("conn reset")})
	_, err = repo.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdates(t *testing.T) {
	db := &fakeDB{affected: 1}
	repo := NewUploadRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.UpdateStatus(ctx, "u1", model.StatusExpired, "expired"))
	require.NoError(t, repo.SaveContent(ctx, "u1", "hello"))
	require.Len(t, db.execs, 2)
	assert.Equal(t, model.StatusExpired, db.execs[0].args[0])
	assert.Equal(t, model.StatusReady, db.execs[1].args[0])
	assert.Equal(t, "hello", db.execs[1].args[1])

	db.affected = 0
	assert.ErrorIs(t, repo.UpdateStatus(ctx, "gone", model.StatusFailed, ""), storage.ErrNotFound)
}
