// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Glyph run segmentation, in ems of the run's font size
const (
	spaceGapEm = 0.15
	breakGapEm = 1.0
	// baselineSlack is in points
	baselineSlack = 0.01
)

// PDF is the pure Go engine backed by github.com/ledongthuc/pdf.
// The library reports one entry per shown glyph; PDF joins them into runs.
type PDF struct{}

// NewPDF creates the default engine
func NewPDF() *PDF {
	return &PDF{}
}

// Name implements Engine
func (e *PDF) Name() string { return "pdf" }

// Open implements Engine
func (e *PDF) Open(ctx context.Context, data []byte) (doc Document, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer recoverMalformed(&err)

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) {
			return nil, fmt.Errorf("%w: %v", ErrEncrypted, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return &pdfDocument{r: r, count: r.NumPage()}, nil
}

type pdfDocument struct {
	r     *pdf.Reader
	count int
}

func (d *pdfDocument) NumPages() int { return d.count }

func (d *pdfDocument) Page(ctx context.Context, n int) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkPage(n, d.count); err != nil {
		return nil, err
	}
	return &pdfPage{p: d.r.Page(n)}, nil
}

// Close is a no-op; the reader holds only the caller's byte slice
func (d *pdfDocument) Close() error { return nil }

type pdfPage struct {
	p pdf.Page
}

// TextItems decodes the page content stream. A missing page object has no text.
func (pg *pdfPage) TextItems(ctx context.Context) (items []TextItem, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer recoverMalformed(&err)

	if pg.p.V.IsNull() {
		return nil, nil
	}
	return segmentGlyphs(pg.p.Content().Text), nil
}

// glyphRun accumulates consecutive glyphs sharing font, size and baseline
type glyphRun struct {
	font string
	size float64
	x, y float64
	endX float64
	text strings.Builder
}

func newGlyphRun(g pdf.Text) *glyphRun {
	r := &glyphRun{font: g.Font, size: g.FontSize, x: g.X, y: g.Y, endX: g.X + g.W}
	r.text.WriteString(g.S)
	return r
}

func (r *glyphRun) em() float64 {
	if em := math.Abs(r.size); em > 0 {
		return em
	}
	return 1
}

// gap is the horizontal distance between the end of the run and g
func (r *glyphRun) gap(g pdf.Text) float64 {
	return g.X - r.endX
}

func (r *glyphRun) accepts(g pdf.Text) bool {
	if g.Font != r.font || g.FontSize != r.size {
		return false
	}
	if math.Abs(g.Y-r.y) > baselineSlack {
		return false
	}
	return math.Abs(r.gap(g)) < breakGapEm*r.em()
}

func (r *glyphRun) add(g pdf.Text) {
	text := r.text.String()
	if r.gap(g) >= spaceGapEm*r.em() && !strings.HasSuffix(text, " ") && !strings.HasPrefix(g.S, " ") {
		r.text.WriteByte(' ')
	}
	r.text.WriteString(g.S)
	r.endX = g.X + g.W
}

func (r *glyphRun) item() TextItem {
	return TextItem{
		Text:      r.text.String(),
		Transform: Matrix{r.size, 0, 0, r.size, r.x, r.y},
	}
}

// showEnd is the marker glyph the library appends after each TJ array
const showEnd = "\n"

// segmentGlyphs joins glyphs into runs, preserving emission order.
// A TJ array always ends its run.
func segmentGlyphs(glyphs []pdf.Text) []TextItem {
	var items []TextItem
	var cur *glyphRun

	for _, g := range glyphs {
		if g.S == showEnd {
			if cur != nil {
				items = append(items, cur.item())
				cur = nil
			}
			continue
		}
		if cur != nil && cur.accepts(g) {
			cur.add(g)
			continue
		}
		if cur != nil {
			items = append(items, cur.item())
		}
		cur = newGlyphRun(g)
	}
	if cur != nil {
		items = append(items, cur.item())
	}

	return items
}
