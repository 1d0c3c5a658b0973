package pdfextract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrExtraction is returned when the input cannot be read as a PDF.
var ErrExtraction = errors.New("pdf text extraction failed")

// pdfMagic is the header every PDF file starts with.
var pdfMagic = []byte("%PDF-")

// IsPDF reports whether b starts with the PDF file header.
func IsPDF(b []byte) bool {
	return bytes.HasPrefix(b, pdfMagic)
}

// ExtractText reads the entire content of r and extracts plain text from the PDF.
// Returns empty string and nil error if the PDF has no extractable text.
func ExtractText(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: read input: %w", ErrExtraction, err)
	}
	if len(b) == 0 {
		return "", nil
	}
	return extractBytes(b)
}

func extractBytes(b []byte) (text string, err error) {
	// the pdf package panics on some malformed cross-reference tables
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("%w: %v", ErrExtraction, rec)
		}
	}()

	pdfReader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	plainReader, err := pdfReader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	out, err := io.ReadAll(plainReader)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	return strings.ToValidUTF8(string(out), ""), nil
}
