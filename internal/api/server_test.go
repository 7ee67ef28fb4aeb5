package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/VaultForm/internal/apierror"
	"github.com/dharsanguruparan/VaultForm/internal/config"
	"github.com/dharsanguruparan/VaultForm/internal/model"
	"github.com/dharsanguruparan/VaultForm/internal/queue"
	"github.com/dharsanguruparan/VaultForm/internal/signing"
	"github.com/dharsanguruparan/VaultForm/internal/storage"
)

const uploadURL = "/api/storage/upload/direct/start/"

type recordingScheduler struct {
	mu   sync.Mutex
	jobs []queue.Job
	err  error
}

func (r *recordingScheduler) Schedule(_ context.Context, job queue.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.jobs = append(r.jobs, job)
	return nil
}

type testEnv struct {
	srv       *httptest.Server
	signer    *signing.Signer
	meta      *storage.MemoryStore
	blobs     *storage.MemoryBlobs
	scheduler *recordingScheduler
	token     string
}

func newTestEnv(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()
	cfg := &config.Server{
		MaxFileSize:       1024,
		AllowedExtensions: []string{".pdf", ".png", ".txt"},
	}
	logger := zerolog.Nop()
	env := &testEnv{
		signer:    signing.NewSigner([]byte("test-secret")),
		meta:      storage.NewMemoryStore(),
		blobs:     storage.NewMemoryBlobs(),
		scheduler: &recordingScheduler{},
	}
	deps := Deps{
		Signer:    env.signer,
		Meta:      env.meta,
		Blobs:     env.blobs,
		Scheduler: env.scheduler,
		Logger:    &logger,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	s := New(cfg, deps)
	env.srv = httptest.NewServer(s.Handler())
	t.Cleanup(env.srv.Close)
	env.token = env.signer.Issue("alice", time.Hour)
	return env
}

type part struct {
	name, filename, contentType, value string
}

func multipartBody(t *testing.T, parts ...part) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		if p.filename == "" {
			require.NoError(t, mw.WriteField(p.name, p.value))
			continue
		}
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{`form-data; name="` + p.name + `"; filename="` + p.filename + `"`}
		if p.contentType != "" {
			h["Content-Type"] = []string{p.contentType}
		}
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = io.WriteString(w, p.value)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) post(t *testing.T, token string, parts ...part) (*http.Response, []byte) {
	t.Helper()
	body, ct := multipartBody(t, parts...)
	req, err := http.NewRequest(http.MethodPost, e.srv.URL+uploadURL, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", ct)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return do(t, req)
}

func (e *testEnv) get(t *testing.T, path, token string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.srv.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return do(t, req)
}

func do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func extract(t *testing.T, raw []byte) string {
	t.Helper()
	p, err := apierror.Parse(raw)
	require.NoError(t, err)
	return apierror.Extract(p)
}

func TestHealthAndRequestID(t *testing.T) {
	env := newTestEnv(t)
	resp, raw := env.get(t, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(raw))

	_, err := xid.FromString(resp.Header.Get(RequestIDHeader))
	assert.NoError(t, err)

	id := xid.New().String()
	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/healthz", nil)
	req.Header.Set(RequestIDHeader, id)
	resp, _ = do(t, req)
	assert.Equal(t, id, resp.Header.Get(RequestIDHeader))
}

func TestUploadRequiresCredentials(t *testing.T) {
	env := newTestEnv(t)
	resp, raw := env.post(t, "", part{name: "fileName", value: "x"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `{"detail":"Authentication credentials were not provided."}`, string(raw))
	assert.Equal(t, `Bearer realm="api"`, resp.Header.Get("WWW-Authenticate"))
}

func TestUploadRejectsBadToken(t *testing.T) {
	env := newTestEnv(t)
	other := signing.NewSigner([]byte("other"))

	for name, token := range map[string]string{
		"garbage":      "nope",
		"wrong secret": other.Issue("alice", time.Hour),
		"expired":      env.signer.Issue("alice", -time.Minute),
	} {
		t.Run(name, func(t *testing.T) {
			resp, raw := env.post(t, token, part{name: "fileName", value: "x"})
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

			p, err := apierror.Parse(raw)
			require.NoError(t, err)
			assert.Equal(t, apierror.TokenNotValid, apierror.Code(p))
			assert.Equal(t, "Token is invalid or expired", apierror.Extract(p))
		})
	}
}

func TestUploadStoresFile(t *testing.T) {
	env := newTestEnv(t)
	resp, raw := env.post(t, env.token,
		part{name: "file", filename: "Annual Report.v2.PDF", contentType: "application/pdf", value: "%PDF-1.4 hello"},
		part{name: "fileName", value: "  Annual report  "},
		part{name: "tagNames", value: `["finance","2025"]`},
		part{name: "expireAt", value: "2030-12-25T00:00:00.000Z"},
		part{name: "reminder", value: "2030-12-20T09:30:00.000+02:00"},
	)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var got model.StoredUpload
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "Annual report", got.FileName)
	assert.Equal(t, "Annual Report", got.OriginalFileName)
	assert.Equal(t, "application/pdf", got.FileType)
	assert.Equal(t, "application/pdf", got.ContentType)
	assert.Equal(t, []string{"finance", "2025"}, got.TagNames)
	assert.Equal(t, "alice", got.Owner)
	assert.Equal(t, model.StatusStored, got.Status)
	assert.Equal(t, "uploads/"+got.ID+"/annual-report-v2.pdf", got.ObjectKey)
	require.NotNil(t, got.Reminder)
	assert.Equal(t, time.Date(2030, 12, 20, 7, 30, 0, 0, time.UTC), got.Reminder.UTC())

	data, err := env.blobs.Get(context.Background(), got.ObjectKey)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 hello", string(data))

	stored, err := env.meta.Get(context.Background(), got.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(len("%PDF-1.4 hello")), stored.Size)

	types := make([]string, 0, len(env.scheduler.jobs))
	for _, job := range env.scheduler.jobs {
		types = append(types, job.Type)
	}
	assert.Equal(t, []string{queue.TaskExtract, queue.TaskRemind, queue.TaskExpire}, types)
}

func TestUploadValidation(t *testing.T) {
	tests := []struct {
		name    string
		parts   []part
		want    string
		message string
	}{
		{
			name:    "missing file and name",
			parts:   []part{{name: "tagNames", value: "[]"}},
			want:    `{"file":["No file was submitted."],"fileName":["This field may not be blank."]}`,
			message: "file: No file was submitted.",
		},
		{
			name: "empty file",
			parts: []part{
				{name: "file", filename: "a.txt", value: ""},
				{name: "fileName", value: "A"},
			},
			want:    `{"file":["The submitted file is empty."]}`,
			message: "file: The submitted file is empty.",
		},
		{
			name: "extension",
			parts: []part{
				{name: "file", filename: "run.exe", value: "MZ"},
				{name: "fileName", value: "Run"},
			},
			want:    `{"file":["File extension \"exe\" is not allowed. Allowed extensions are: .pdf, .png, .txt."]}`,
			message: `file: File extension "exe" is not allowed. Allowed extensions are: .pdf, .png, .txt.`,
		},
		{
			name: "oversize",
			parts: []part{
				{name: "file", filename: "big.txt", value: strings.Repeat("a", 2048)},
				{name: "fileName", value: "Big"},
			},
			want:    `{"file":["Ensure this file is no larger than 1.0 KiB."]}`,
			message: "file: Ensure this file is no larger than 1.0 KiB.",
		},
		{
			name: "tags not json",
			parts: []part{
				{name: "file", filename: "a.txt", value: "hi"},
				{name: "fileName", value: "A"},
				{name: "tagNames", value: "a, b"},
			},
			want:    `{"tagNames":["Value must be valid JSON."]}`,
			message: "tagNames: Value must be valid JSON.",
		},
		{
			name: "tags not list",
			parts: []part{
				{name: "file", filename: "a.txt", value: "hi"},
				{name: "fileName", value: "A"},
				{name: "tagNames", value: `{"a":1}`},
			},
			want:    `{"tagNames":["Expected a list of items but got something else."]}`,
			message: "tagNames: Expected a list of items but got something else.",
		},
		{
			name: "bad date",
			parts: []part{
				{name: "file", filename: "a.txt", value: "hi"},
				{name: "fileName", value: "A"},
				{name: "expireAt", value: "25/12/2030"},
			},
			message: "expireAt: " + msgBadDate,
		},
		{
			name: "reminder after expiry",
			parts: []part{
				{name: "file", filename: "a.txt", value: "hi"},
				{name: "fileName", value: "A"},
				{name: "expireAt", value: "2030-12-01T00:00:00.000Z"},
				{name: "reminder", value: "2030-12-02T00:00:00.000Z"},
			},
			want:    `{"non_field_errors":["Reminder must be before the expiration date."]}`,
			message: "Reminder must be before the expiration date.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			resp, raw := env.post(t, env.token, tt.parts...)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			if tt.want != "" {
				assert.JSONEq(t, tt.want, string(raw))
			}
			assert.Equal(t, tt.message, extract(t, raw))
			assert.Equal(t, 0, env.blobs.Len())
		})
	}
}

func TestUploadFieldOrder(t *testing.T) {
	env := newTestEnv(t)
	_, raw := env.post(t, env.token, part{name: "expireAt", value: "soon"})
	assert.True(t, strings.HasPrefix(string(raw), `{"file":`), string(raw))
}

func TestUploadNotMultipart(t *testing.T) {
	env := newTestEnv(t)
	req, _ := http.NewRequest(http.MethodPost, env.srv.URL+uploadURL, strings.NewReader(`{"fileName":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+env.token)
	resp, raw := do(t, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, msgParseError, extract(t, raw))
}

// trackingMeta remembers created ids and can be told to refuse inserts.
type trackingMeta struct {
	*storage.MemoryStore
	createErr error

	mu      sync.Mutex
	created []string
}

func (m *trackingMeta) Create(ctx context.Context, u *model.StoredUpload) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	m.created = append(m.created, u.ID)
	m.mu.Unlock()
	return m.MemoryStore.Create(ctx, u)
}

func (m *trackingMeta) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.created...)
}

func TestUploadSchedulerFailure(t *testing.T) {
	var meta *trackingMeta
	env := newTestEnv(t, func(d *Deps) {
		meta = &trackingMeta{MemoryStore: storage.NewMemoryStore()}
		d.Meta = meta
	})
	env.scheduler.err = errors.New("redis down")
	resp, raw := env.post(t, env.token,
		part{name: "file", filename: "a.pdf", value: "%PDF-1.4"},
		part{name: "fileName", value: "A"},
	)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Failed to queue background jobs.", extract(t, raw))
	assert.Zero(t, env.blobs.Len())

	ids := meta.ids()
	require.Len(t, ids, 1)
	got, err := meta.Get(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
}

func TestUploadMetadataFailure(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.Meta = &trackingMeta{MemoryStore: storage.NewMemoryStore(), createErr: errors.New("db down")}
	})
	resp, raw := env.post(t, env.token,
		part{name: "file", filename: "a.pdf", value: "%PDF-1.4"},
		part{name: "fileName", value: "A"},
	)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Failed to store file metadata.", extract(t, raw))
	assert.Zero(t, env.blobs.Len())
	assert.Empty(t, env.scheduler.jobs)
}

func TestFileInfo(t *testing.T) {
	env := newTestEnv(t)
	_, raw := env.post(t, env.token,
		part{name: "file", filename: "pic.png", contentType: "image/png", value: "\x89PNG\r\n\x1a\n"},
		part{name: "fileName", value: "Picture"},
	)
	var created model.StoredUpload
	require.NoError(t, json.Unmarshal(raw, &created))
	assert.Equal(t, "image/png", created.FileType)
	assert.Empty(t, env.scheduler.jobs)

	resp, raw := env.get(t, "/api/storage/files/"+created.ID+"/", env.token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, created.ID, got["id"])
	assert.NotContains(t, got, "downloadUrl")

	resp, _ = env.get(t, "/api/storage/files/"+created.ID+"/", env.signer.Issue("mallory", time.Hour))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, raw = env.get(t, "/api/storage/files/missing/", env.token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Not found.", extract(t, raw))

	resp, _ = env.get(t, "/api/storage/files/"+created.ID+"/", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	req, _ := http.NewRequest(http.MethodOptions, env.srv.URL+uploadURL, nil)
	resp, _ := do(t, req)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestFieldErrorPayload(t *testing.T) {
	var fe FieldError
	assert.True(t, fe.Empty())
	fe.Add("b", "first")
	fe.Add("a", "second")
	fe.Add("b", "third")

	raw, err := json.Marshal(&fe)
	require.NoError(t, err)
	assert.Equal(t, `{"b":["first","third"],"a":["second"]}`, string(raw))
	assert.Equal(t, "validation failed: b: first", fe.Error())
}
