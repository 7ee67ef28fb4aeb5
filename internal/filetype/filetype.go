// Package filetype maps a picked file to the normalized type tag the storage
// API expects in its fileType field.
package filetype

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

// Descriptor is what a file picker reports about the chosen file.
type Descriptor struct {
	MimeType string `json:"mimeType"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
}

// fallbackType is returned when neither the MIME type nor the name tell us
// anything. It is an odd default but clients downstream already depend on it.
const fallbackType = "image/jpeg"

func documentTag(mimeType string) (string, bool) {
	switch mimeType {
	case "application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return "document/word", true
	case "application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return "document/excel", true
	case "application/vnd.ms-powerpoint",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation":
		return "document/powerpoint", true
	case "text/plain":
		return "document/text", true
	}
	return "", false
}

// AcceptedExtensions lists what the picker offers by default. The list is
// advisory; Classify handles any file.
var AcceptedExtensions = []string{
	".png", ".jpg", ".jpeg", ".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".txt",
}

// Classify returns the type tag for d. A nil descriptor yields "".
func Classify(d *Descriptor) string {
	if d == nil {
		return ""
	}
	mt := d.MimeType
	switch {
	case strings.HasPrefix(mt, "image/"):
		return mt
	case mt == "application/pdf":
		return mt
	}
	if tag, ok := documentTag(mt); ok {
		return tag
	}
	if ext := Extension(d.Name); ext != "" {
		return "file/" + ext
	}
	return fallbackType
}

// Extension returns the lower-cased text after the final dot of name, or ""
// when name has no dot.
func Extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// Accepted reports whether name carries one of AcceptedExtensions.
func Accepted(name string) bool {
	ext := Extension(name)
	if ext == "" {
		return false
	}
	for _, allowed := range AcceptedExtensions {
		if allowed == "."+ext {
			return true
		}
	}
	return false
}

// Describe stats and sniffs a local file the way a browser picker would fill
// in a Descriptor.
func Describe(path string) (*Descriptor, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	name := filepath.Base(path)
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("detect type of %s: %w", path, err)
	}
	declared := baseType(mt.String())
	if declared == "application/octet-stream" {
		// Sniffing gave up; fall back on the extension table.
		if byExt := baseType(mime.TypeByExtension(filepath.Ext(name))); byExt != "" {
			declared = byExt
		}
	}
	return &Descriptor{
		MimeType: declared,
		Name:     name,
		Size:     info.Size(),
	}, nil
}

// HumanSize formats a byte count for display next to the picked file.
func HumanSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

func baseType(v string) string {
	if i := strings.IndexByte(v, ';'); i >= 0 {
		v = v[:i]
	}
	return strings.ToLower(strings.TrimSpace(v))
}
