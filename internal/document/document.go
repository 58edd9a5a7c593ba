// Package document identifies uploaded medical documents and extracts their text.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

// Kind is the declared or detected kind of an uploaded document
type Kind string

const (
	KindImage Kind = "image"
	KindPDF   Kind = "pdf"
)

var (
	// ErrUnsupported is returned for content that is neither a JPEG/PNG image nor a PDF
	ErrUnsupported = errors.New("unsupported document content")
	// ErrKindMismatch is returned when the content does not match the declared kind
	ErrKindMismatch = errors.New("document content does not match declared type")
	// ErrNoText is returned when a PDF holds no extractable text
	ErrNoText = errors.New("no extractable text in PDF")
)

// Detected describes sniffed content
type Detected struct {
	Kind Kind
	// MIME is the detected media type, e.g. "image/png"
	MIME string
	// Format is the image subtype passed to the model, e.g. "png"
	Format string
}

// Detect sniffs the content type from the leading bytes
func Detect(data []byte) (Detected, error) {
	mt := mimetype.Detect(data)
	switch {
	case mt.Is("image/jpeg"):
		return Detected{Kind: KindImage, MIME: "image/jpeg", Format: "jpeg"}, nil
	case mt.Is("image/png"):
		return Detected{Kind: KindImage, MIME: "image/png", Format: "png"}, nil
	case mt.Is("application/pdf"):
		return Detected{Kind: KindPDF, MIME: "application/pdf"}, nil
	default:
		return Detected{}, fmt.Errorf("%w: %s", ErrUnsupported, mt.String())
	}
}

// DetectAs sniffs the content and checks it against the declared kind
func DetectAs(data []byte, declared Kind) (Detected, error) {
	d, err := Detect(data)
	if err != nil {
		return Detected{}, err
	}
	if d.Kind != declared {
		return Detected{}, fmt.Errorf("%w: declared %s, got %s", ErrKindMismatch, declared, d.MIME)
	}
	return d, nil
}

// ExtractPages returns the plain text of every page that has content.
// Pages that fail to decode are skipped.
func ExtractPages(data []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return nil, ErrNoText
	}
	return pages, nil
}

// ExtractText returns the text of all pages joined by newlines
func ExtractText(data []byte) (string, error) {
	pages, err := ExtractPages(data)
	if err != nil {
		return "", err
	}
	return strings.Join(pages, "\n"), nil
}
