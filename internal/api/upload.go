package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/rs/zerolog/hlog"

	"github.com/dharsanguruparan/VaultForm/internal/filetype"
	"github.com/dharsanguruparan/VaultForm/internal/model"
	"github.com/dharsanguruparan/VaultForm/internal/queue"
)

const (
	// formOverhead is what the non-file fields may add to a request body.
	formOverhead = 1 << 20
	sniffLen     = 3072

	msgNoFile      = "No file was submitted."
	msgEmptyFile   = "The submitted file is empty."
	msgBlank       = "This field may not be blank."
	msgInvalidJSON = "Value must be valid JSON."
	msgNotList     = "Expected a list of items but got something else."
	msgBadDate     = "Datetime has wrong format. Use one of these formats instead: YYYY-MM-DDThh:mm[:ss[.uuuuuu]][+HH:MM|-HH:MM|Z]."
	msgReminder    = "Reminder must be before the expiration date."
	msgParseError  = "Multipart form parse error."
)

type uploadForm struct {
	file      *tempUpload
	fields    map[string]string
	truncated bool
}

func (f *uploadForm) close() {
	if f.file != nil {
		f.file.discard()
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := hlog.FromRequest(r)
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+formOverhead)

	form, ferr, err := s.readForm(r)
	if form != nil {
		defer form.close()
	}
	if err != nil {
		logger.Info().Err(err).Msg("unreadable upload form")
		respondDetail(w, r, http.StatusBadRequest, msgParseError)
		return
	}
	upload, verr := s.validate(form, ferr)
	if !verr.Empty() {
		logger.Info().Err(verr).Msg("upload rejected")
		respondJSON(w, r, http.StatusBadRequest, verr)
		return
	}
	upload.Owner = Subject(ctx)

	if err := s.storeBlob(r, upload, form.file); err != nil {
		logger.Error().Err(err).Msg("store upload blob")
		respondDetail(w, r, http.StatusInternalServerError, "Failed to store file.")
		return
	}
	if err := s.meta.Create(ctx, upload); err != nil {
		logger.Error().Err(err).Msg("store upload metadata")
		s.discardBlob(r, upload)
		respondDetail(w, r, http.StatusInternalServerError, "Failed to store file metadata.")
		return
	}
	if s.scheduler != nil {
		if err := queue.ScheduleAll(ctx, s.scheduler, queue.Plan(upload)); err != nil {
			logger.Error().Err(err).Str("upload_id", upload.ID).Msg("schedule upload jobs")
			if err := s.meta.UpdateStatus(ctx, upload.ID, model.StatusFailed, "background jobs not queued"); err != nil {
				logger.Warn().Err(err).Str("upload_id", upload.ID).Msg("mark upload failed")
			}
			s.discardBlob(r, upload)
			respondDetail(w, r, http.StatusInternalServerError, "Failed to queue background jobs.")
			return
		}
	}
	logger.Info().
		Str("upload_id", upload.ID).
		Str("owner", upload.Owner).
		Str("file_type", upload.FileType).
		Int64("size", upload.Size).
		Msg("upload stored")
	respondJSON(w, r, http.StatusCreated, upload)
}

// readForm walks the multipart body once, spooling the file part to disk and
// keeping the other fields in memory. An oversized file comes back as a field
// error; when the body itself was cut short the form is marked truncated.
func (s *Server) readForm(r *http.Request) (*uploadForm, *FieldError, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, nil, err
	}
	form := &uploadForm{fields: make(map[string]string)}
	ferr := &FieldError{}
	tooLarge := func() {
		if len(ferr.Messages("file")) == 0 {
			ferr.Add("file", s.tooLargeMessage())
		}
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return form, ferr, nil
		}
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				tooLarge()
				form.truncated = true
				return form, ferr, nil
			}
			return form, ferr, err
		}
		if err := s.readPart(form, part); err != nil {
			part.Close()
			if !errors.Is(err, errFileTooLarge) {
				return form, ferr, err
			}
			tooLarge()
			continue
		}
		part.Close()
	}
}

func (s *Server) readPart(form *uploadForm, part *multipart.Part) error {
	name := part.FormName()
	switch {
	case name == "file":
		if form.file != nil {
			return nil
		}
		tmp, err := s.persistTemp(part)
		if err != nil {
			return err
		}
		form.file = tmp
	case name != "":
		value, err := io.ReadAll(io.LimitReader(part, formOverhead))
		if err != nil {
			return fmt.Errorf("read field %s: %w", name, err)
		}
		form.fields[name] = string(value)
	}
	return nil
}

func (s *Server) tooLargeMessage() string {
	return "Ensure this file is no larger than " + filetype.HumanSize(s.cfg.MaxFileSize) + "."
}

// validate turns the raw form into a StoredUpload, collecting every field
// problem in report order.
func (s *Server) validate(form *uploadForm, ferr *FieldError) (*model.StoredUpload, *FieldError) {
	u := &model.StoredUpload{ID: uuid.NewString(), TagNames: []string{}}

	switch {
	case len(ferr.Messages("file")) > 0:
	case form.file == nil:
		ferr.Add("file", msgNoFile)
	case form.file.size == 0:
		ferr.Add("file", msgEmptyFile)
	default:
		ext := filetype.Extension(form.file.filename)
		if !s.extensionAllowed(ext) {
			ferr.Add("file", fmt.Sprintf("File extension %q is not allowed. Allowed extensions are: %s.",
				ext, strings.Join(s.cfg.AllowedExtensions, ", ")))
		}
		u.ContentType = form.file.contentType
		u.Size = form.file.size
		declared := form.file.declaredType
		if declared == "" || declared == "application/octet-stream" {
			declared = form.file.contentType
		}
		u.FileType = filetype.Classify(&filetype.Descriptor{MimeType: declared, Name: form.file.filename, Size: form.file.size})
		u.ObjectKey = objectKey(u.ID, form.file.filename)
	}
	if form.truncated {
		return u, ferr
	}

	u.FileName = strings.TrimSpace(form.fields["fileName"])
	if u.FileName == "" {
		ferr.Add("fileName", msgBlank)
	}
	if form.file != nil {
		u.OriginalFileName, _, _ = strings.Cut(form.file.filename, ".")
	}

	if raw, ok := form.fields["tagNames"]; ok && strings.TrimSpace(raw) != "" {
		var anyValue any
		if err := json.Unmarshal([]byte(raw), &anyValue); err != nil {
			ferr.Add("tagNames", msgInvalidJSON)
		} else if err := json.Unmarshal([]byte(raw), &u.TagNames); err != nil {
			ferr.Add("tagNames", msgNotList)
		}
		if u.TagNames == nil {
			u.TagNames = []string{}
		}
	}

	u.ExpireAt = parseDateField(form.fields, "expireAt", ferr)
	u.Reminder = parseDateField(form.fields, "reminder", ferr)
	if u.ExpireAt != nil && u.Reminder != nil && u.Reminder.After(*u.ExpireAt) {
		ferr.Add(NonFieldErrors, msgReminder)
	}
	return u, ferr
}

func parseDateField(fields map[string]string, name string, ferr *FieldError) *time.Time {
	raw := strings.TrimSpace(fields[name])
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		ferr.Add(name, msgBadDate)
		return nil
	}
	t = t.UTC()
	return &t
}

func (s *Server) extensionAllowed(ext string) bool {
	if len(s.cfg.AllowedExtensions) == 0 {
		return true
	}
	for _, allowed := range s.cfg.AllowedExtensions {
		if "."+ext == allowed {
			return true
		}
	}
	return false
}

// objectKey builds uploads/<id>/<slug>.<ext> from the client's file name.
// The extension is lower-cased and left out when the name has none.
func objectKey(id, filename string) string {
	ext := filetype.Extension(filename)
	base := slug.Make(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)))
	if base == "" {
		base = "file"
	}
	if ext != "" {
		base += "." + ext
	}
	return "uploads/" + id + "/" + base
}

func (s *Server) storeBlob(r *http.Request, u *model.StoredUpload, tmp *tempUpload) error {
	if _, err := tmp.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind temp file: %w", err)
	}
	return s.blobs.Put(r.Context(), u.ObjectKey, tmp.f, tmp.size, tmp.contentType)
}

// discardBlob removes the bytes of an upload that never became usable.
func (s *Server) discardBlob(r *http.Request, u *model.StoredUpload) {
	if err := s.blobs.Delete(r.Context(), u.ObjectKey); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("object_key", u.ObjectKey).Msg("discard upload blob")
	}
}

var errFileTooLarge = errors.New("file too large")

type tempUpload struct {
	f            *os.File
	path         string
	size         int64
	contentType  string
	declaredType string
	filename     string
}

func (t *tempUpload) discard() {
	t.f.Close()
	os.Remove(t.path)
}

// persistTemp copies the file part to a temp file, enforcing the size limit
// and sniffing the content type from the first bytes.
func (s *Server) persistTemp(part *multipart.Part) (*tempUpload, error) {
	tmpFile, err := os.CreateTemp("", "vaultform-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmp := &tempUpload{f: tmpFile, path: tmpFile.Name(), filename: part.FileName()}
	if tmp.filename == "" {
		tmp.filename = "upload"
	}
	tmp.declaredType = part.Header.Get("Content-Type")

	var sniff []byte
	buf := make([]byte, 32*1024)
	for {
		n, readErr := part.Read(buf)
		if n > 0 {
			tmp.size += int64(n)
			if tmp.size > s.cfg.MaxFileSize {
				tmp.discard()
				return nil, errFileTooLarge
			}
			if len(sniff) < sniffLen {
				chunk := min(n, sniffLen-len(sniff))
				sniff = append(sniff, buf[:chunk]...)
			}
			if _, err := tmpFile.Write(buf[:n]); err != nil {
				tmp.discard()
				return nil, fmt.Errorf("write temp file: %w", err)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			tmp.discard()
			var tooBig *http.MaxBytesError
			if errors.As(readErr, &tooBig) {
				return nil, errFileTooLarge
			}
			return nil, fmt.Errorf("read file: %w", readErr)
		}
	}
	tmp.contentType = baseType(mimetype.Detect(sniff).String())
	return tmp, nil
}

func baseType(v string) string {
	t, _, _ := strings.Cut(v, ";")
	return strings.TrimSpace(t)
}
