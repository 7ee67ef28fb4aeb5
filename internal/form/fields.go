package form

import (
	"fmt"
	"strings"
	"time"
)

// dateLayouts are tried in order by ParseDate. The first matches the
// dd/MM/yyyy hint shown next to the date fields.
var dateLayouts = []string{
	"02/01/2006",
	"2006-01-02",
	time.RFC3339Nano,
	time.RFC3339,
}

// ParseDate reads a date typed by the user. An empty string clears the field
// and returns nil.
func ParseDate(raw string, loc *time.Location) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%q is not a date (expected dd/mm/yyyy)", raw)
}

// ParseTags splits a comma separated tag list, trimming each tag and dropping
// blanks.
func ParseTags(raw string) []string {
	tags := []string{}
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// originalName returns the part of a file name before its first dot.
func originalName(fileName string) string {
	if i := strings.IndexByte(fileName, '.'); i >= 0 {
		return fileName[:i]
	}
	return fileName
}
