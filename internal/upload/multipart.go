package upload

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
	"time"
)

// DateLayout is how reminder and expireAt dates are sent: ISO-8601 in UTC with
// millisecond precision.
const DateLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatDate renders t in DateLayout.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// newFormBody streams the multipart encoding of rec through a pipe so the
// file is never buffered in memory. content, when non-nil, is closed once
// written.
func newFormBody(rec *Record, content io.ReadCloser) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(mw, rec, content))
	}()
	return pr, mw.FormDataContentType()
}

func writeForm(mw *multipart.Writer, rec *Record, content io.ReadCloser) error {
	if content != nil {
		defer content.Close()
		if err := writeFile(mw, rec.File.Name, rec.File.MimeType, content); err != nil {
			return err
		}
	}
	if err := mw.WriteField("fileName", rec.FileName); err != nil {
		return err
	}
	tags := rec.TagNames
	if tags == nil {
		tags = []string{}
	}
	encoded, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	if err := mw.WriteField("tagNames", string(encoded)); err != nil {
		return err
	}
	if rec.ExpireAt != nil {
		if err := mw.WriteField("expireAt", FormatDate(*rec.ExpireAt)); err != nil {
			return err
		}
	}
	if rec.Reminder != nil {
		if err := mw.WriteField("reminder", FormatDate(*rec.Reminder)); err != nil {
			return err
		}
	}
	return mw.Close()
}

func writeFile(mw *multipart.Writer, name, mimeType string, content io.Reader) error {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(name)))
	h.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("stream %s: %w", name, err)
	}
	return nil
}
