// Package form holds the state of the upload form between edits and hands a
// completed record to the uploader on submit.
package form

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dharsanguruparan/VaultForm/internal/filetype"
	"github.com/dharsanguruparan/VaultForm/internal/idgen"
	"github.com/dharsanguruparan/VaultForm/internal/notify"
	"github.com/dharsanguruparan/VaultForm/internal/upload"
)

var (
	// ErrInvalid is returned by Submit when required fields are missing.
	ErrInvalid = errors.New("form is incomplete")
	// ErrInFlight is returned by Submit while an earlier submission is still
	// waiting for the server.
	ErrInFlight = errors.New("an upload is already in progress")
)

// Submitter sends a record to the storage API.
type Submitter interface {
	Submit(ctx context.Context, rec *upload.Record, token string) upload.Outcome
}

// TokenSource supplies the bearer token for each submission.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", errors.New("no API token configured")
	}
	return string(t), nil
}

// Options wires a Session to its collaborators.
type Options struct {
	IDs       *idgen.Generator
	Submitter Submitter
	Tokens    TokenSource
	Notifier  notify.Notifier
	// Location is used for dates typed without a zone. Defaults to time.Local.
	Location *time.Location
}

// Session is one mounted upload form.
type Session struct {
	ids       *idgen.Generator
	submitter Submitter
	tokens    TokenSource
	notifier  notify.Notifier
	loc       *time.Location

	mu       sync.Mutex
	record   *upload.Record
	inFlight atomic.Bool
}

// NewSession mounts a form: the id sequence restarts and a blank record is
// created.
func NewSession(opts Options) *Session {
	ids := opts.IDs
	if ids == nil {
		ids = idgen.New()
	}
	ids.Reset()
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Multi{}
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	s := &Session{
		ids:       ids,
		submitter: opts.Submitter,
		tokens:    opts.Tokens,
		notifier:  notifier,
		loc:       loc,
	}
	s.record = s.blank()
	return s
}

func (s *Session) blank() *upload.Record {
	return &upload.Record{
		ID:       s.ids.Next(),
		TagNames: []string{},
	}
}

// Record returns a copy of the current record.
func (s *Session) Record() upload.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := *s.record
	rec.TagNames = append([]string(nil), s.record.TagNames...)
	return rec
}

// SetFileName sets the display name.
func (s *Session) SetFileName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.FileName = name
}

// SetTags replaces the tags with those parsed from a comma separated list.
func (s *Session) SetTags(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.TagNames = ParseTags(raw)
}

// TagsText renders the tags back into the text field.
func (s *Session) TagsText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.record.TagNames, ", ")
}

// SetExpireAt parses and stores the expiration date; "" clears it.
func (s *Session) SetExpireAt(raw string) error {
	t, err := ParseDate(raw, s.loc)
	if err != nil {
		return fmt.Errorf("expiration date: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.ExpireAt = t
	return nil
}

// SetReminder parses and stores the reminder date; "" clears it.
func (s *Session) SetReminder(raw string) error {
	t, err := ParseDate(raw, s.loc)
	if err != nil {
		return fmt.Errorf("reminder: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.Reminder = t
	return nil
}

// AttachFile sets the file and the fields derived from it. A nil attachment
// removes the file.
func (s *Session) AttachFile(a *upload.Attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a == nil {
		s.clearFile()
		return
	}
	s.record.File = a
	s.record.OriginalFileName = originalName(a.Name)
	s.record.FileType = filetype.Classify(&a.Descriptor)
}

// RemoveFile detaches the file.
func (s *Session) RemoveFile() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearFile()
}

func (s *Session) clearFile() {
	s.record.File = nil
	s.record.OriginalFileName = ""
	s.record.FileType = ""
}

// Valid reports whether the record can be submitted.
func (s *Session) Valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.Validate() == nil
}

// Loading reports whether a submission is waiting for the server.
func (s *Session) Loading() bool {
	return s.inFlight.Load()
}

// Cancel discards the current edits and starts a new record.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = s.blank()
}

// Submit sends the current record. The form is reset to a new record as soon
// as the submission starts. Exactly one notification is sent for every
// submission that gets past validation; the returned error is only set when
// nothing was sent.
func (s *Session) Submit(ctx context.Context) (upload.Outcome, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return upload.Outcome{}, ErrInFlight
	}
	defer s.inFlight.Store(false)

	s.mu.Lock()
	if err := s.record.Validate(); err != nil {
		s.mu.Unlock()
		return upload.Outcome{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	rec := s.record
	s.record = s.blank()
	s.mu.Unlock()

	out := s.send(ctx, rec)
	s.notifier.Notify(notify.FromOutcome(out))
	return out, nil
}

func (s *Session) send(ctx context.Context, rec *upload.Record) upload.Outcome {
	if s.submitter == nil {
		return upload.Failed(upload.KindUnknownError, "no uploader configured")
	}
	var token string
	if s.tokens != nil {
		t, err := s.tokens.Token(ctx)
		if err != nil {
			return upload.Failed(upload.KindAuthError, err.Error())
		}
		token = t
	}
	return s.submitter.Submit(ctx, rec, token)
}
