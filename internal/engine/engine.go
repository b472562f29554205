// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package engine

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrMalformed reports input the engine cannot parse, whole-document or per-page
	ErrMalformed = errors.New("malformed PDF")
	// ErrEncrypted reports a password-protected document
	ErrEncrypted = errors.New("encrypted PDF not supported")
	// ErrPageRange reports a page number outside 1..NumPages
	ErrPageRange = errors.New("page out of range")
)

// Matrix is a 2D affine transform [a b c d e f]; e and f are the translation
type Matrix [6]float64

// X returns the horizontal translation
func (m Matrix) X() float64 { return m[4] }

// Y returns the vertical translation
func (m Matrix) Y() float64 { return m[5] }

// TextItem is one run of text as segmented by the engine
type TextItem struct {
	Text      string
	Transform Matrix
}

// Engine opens PDF bytes
type Engine interface {
	// Name identifies the engine in config and logs
	Name() string
	// Open parses the document held in data
	Open(ctx context.Context, data []byte) (Document, error)
}

// Document gives random access to pages numbered 1..NumPages
type Document interface {
	NumPages() int
	Page(ctx context.Context, n int) (Page, error)
	Close() error
}

// Page yields its text items in the order the engine emits them
type Page interface {
	TextItems(ctx context.Context) ([]TextItem, error)
}

// New returns the engine registered under name
func New(name string) (Engine, error) {
	switch name {
	case "", "pdf":
		return NewPDF(), nil
	case "mupdf":
		return NewMuPDF(), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", name)
	}
}

// checkPage validates a 1-based page number against count
func checkPage(n, count int) error {
	if n < 1 || n > count {
		return fmt.Errorf("%w: %d not in 1..%d", ErrPageRange, n, count)
	}
	return nil
}

// recoverMalformed turns a panic from a parsing library into ErrMalformed
func recoverMalformed(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", ErrMalformed, r)
	}
}
