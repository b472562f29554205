// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extract

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
)

// FormField is the multipart field carrying the selected file
const FormField = "file"

// PDFMediaType is the only media type the loader accepts
const PDFMediaType = "application/pdf"

// multipartOverhead leaves room for boundaries and part headers on top of the file limit
const multipartOverhead = 64 << 10

var (
	// ErrNoFile means the selection was empty; callers treat it as a no-op
	ErrNoFile = errors.New("no file selected")
	// ErrNotPDF means the content is not a PDF document
	ErrNotPDF = errors.New("file is not a PDF")
	// ErrTooLarge means the file exceeds the configured limit
	ErrTooLarge = errors.New("file too large")
)

// Upload is the fully read file handed to the extraction stage
type Upload struct {
	Name string
	Data []byte
}

// Loader reads the user's file into memory
type Loader struct {
	maxBytes int64
}

// NewLoader creates a loader accepting files up to maxBytes
func NewLoader(maxBytes int64) *Loader {
	return &Loader{maxBytes: maxBytes}
}

// FromRequest streams the multipart body up to the first file of the field "file".
// Returns ErrNoFile when the field holds no files.
func (l *Loader) FromRequest(w http.ResponseWriter, r *http.Request) (Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, l.maxBytes+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		return Upload{}, fmt.Errorf("invalid upload: %w", err)
	}

	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return Upload{}, ErrNoFile
		}
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return Upload{}, fmt.Errorf("%w: upload exceeds %d bytes", ErrTooLarge, l.maxBytes)
			}
			return Upload{}, fmt.Errorf("invalid upload: %w", err)
		}

		// An empty file input still sends a part, with no file name
		if p.FormName() != FormField || p.FileName() == "" {
			p.Close()
			continue
		}

		// Only the first file of a multi-selection is used
		defer p.Close()
		return l.Read(p.FileName(), p)
	}
}

// Read loads r fully and checks that it holds a PDF.
// A failed read still returns the file name for the error indicator.
func (l *Loader) Read(name string, r io.Reader) (Upload, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return Upload{Name: name}, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, name, l.maxBytes)
		}
		return Upload{Name: name}, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if int64(len(data)) > l.maxBytes {
		return Upload{Name: name}, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, name, l.maxBytes)
	}

	if mt := mimetype.Detect(data); !mt.Is(PDFMediaType) {
		return Upload{Name: name}, fmt.Errorf("%w: %s is %s", ErrNotPDF, name, mt.String())
	}

	return Upload{Name: name, Data: data}, nil
}
