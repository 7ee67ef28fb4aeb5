// Package upload submits a form record to the storage API's upload endpoint
// and reports the result as an Outcome.
package upload

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dharsanguruparan/VaultForm/internal/filetype"
)

var (
	ErrMissingFileName = errors.New("file name is required")
	ErrMissingFile     = errors.New("a file must be attached")
)

// Record is the data collected by the upload form.
type Record struct {
	ID               string      `json:"id"`
	FileName         string      `json:"fileName"`
	OriginalFileName string      `json:"originalFileName"`
	FileType         string      `json:"fileType"`
	TagNames         []string    `json:"tagNames"`
	File             *Attachment `json:"-"`
	Reminder         *time.Time  `json:"reminder,omitempty"`
	ExpireAt         *time.Time  `json:"expireAt,omitempty"`
}

// Validate checks the fields the API requires.
func (r *Record) Validate() error {
	var errs []error
	if strings.TrimSpace(r.FileName) == "" {
		errs = append(errs, ErrMissingFileName)
	}
	if r.File == nil {
		errs = append(errs, ErrMissingFile)
	}
	return errors.Join(errs...)
}

// Attachment is a picked file: its descriptor plus a way to read it.
type Attachment struct {
	filetype.Descriptor
	open func() (io.ReadCloser, error)
}

// OpenFile describes a local file. The file is only opened when the record is
// submitted.
func OpenFile(path string) (*Attachment, error) {
	d, err := filetype.Describe(path)
	if err != nil {
		return nil, err
	}
	return &Attachment{
		Descriptor: *d,
		open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// FromBytes wraps in-memory content as an attachment.
func FromBytes(name, mimeType string, data []byte) *Attachment {
	return &Attachment{
		Descriptor: filetype.Descriptor{
			MimeType: mimeType,
			Name:     name,
			Size:     int64(len(data)),
		},
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Open returns a fresh reader over the attachment's content.
func (a *Attachment) Open() (io.ReadCloser, error) {
	if a.open == nil {
		return nil, errors.New("attachment has no content")
	}
	return a.open()
}
