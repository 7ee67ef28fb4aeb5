// Package pdfutil pulls plain text out of uploaded PDFs.
package pdfutil

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// ErrNotPDF is returned for data without the %PDF- header.
var ErrNotPDF = errors.New("not a pdf document")

// MaxTextBytes bounds the text kept per document.
const MaxTextBytes = 1 << 20

// IsPDF reports whether data starts with the PDF magic header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// ExtractText reads PDF bytes and returns the plain text of every page,
// truncated to MaxTextBytes.
func ExtractText(data []byte) (text string, err error) {
	if !IsPDF(data) {
		return "", ErrNotPDF
	}
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parse pdf: %v", r)
		}
	}()
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("new pdf reader: %w", err)
	}
	var b strings.Builder
	for n := 1; n <= doc.NumPage(); n++ {
		page := doc.Page(n)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", n, err)
		}
		b.WriteString(strings.TrimSpace(content))
		b.WriteString("\n")
		if b.Len() >= MaxTextBytes {
			break
		}
	}
	out := strings.TrimSpace(b.String())
	if len(out) > MaxTextBytes {
		out = strings.ToValidUTF8(out[:MaxTextBytes], "")
	}
	return out, nil
}
