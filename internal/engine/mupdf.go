// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gen2brain/go-fitz"
)

// MuPDF extracts positioned text through go-fitz (MuPDF).
type MuPDF struct{}

// NewMuPDF creates the MuPDF-backed engine
func NewMuPDF() *MuPDF {
	return &MuPDF{}
}

// Name implements Engine
func (e *MuPDF) Name() string { return "mupdf" }

// Open implements Engine
func (e *MuPDF) Open(ctx context.Context, data []byte) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		if errors.Is(err, fitz.ErrNeedsPassword) {
			return nil, fmt.Errorf("%w: %v", ErrEncrypted, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return &mupdfDocument{doc: doc, count: doc.NumPage()}, nil
}

type mupdfDocument struct {
	doc   *fitz.Document
	count int
}

func (d *mupdfDocument) NumPages() int { return d.count }

func (d *mupdfDocument) Page(ctx context.Context, n int) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkPage(n, d.count); err != nil {
		return nil, err
	}
	return &mupdfPage{doc: d.doc, index: n - 1}, nil
}

func (d *mupdfDocument) Close() error {
	return d.doc.Close()
}

type mupdfPage struct {
	doc   *fitz.Document
	index int
}

// TextItems renders the page as MuPDF positioned HTML and reads one item per line
func (pg *mupdfPage) TextItems(ctx context.Context) ([]TextItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	html, err := pg.doc.HTML(pg.index, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	lines, height, err := parsePageHTML(html)
	if err != nil {
		return nil, err
	}
	if height == 0 {
		bounds, err := pg.doc.Bound(pg.index)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		height = float64(bounds.Dy())
	}

	items := make([]TextItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, l.item(height))
	}
	return items, nil
}

// MuPDF's HTML writer places a line box at top = baseline - htmlAscent*size
// with line-height = size, and prints lengths to 0.1pt.
const htmlAscent = 0.8

// htmlLine is one <p> of MuPDF output, in top-left page coordinates
type htmlLine struct {
	text       string
	left       float64
	top        float64
	lineHeight float64
	fontSize   float64
}

// item flips the line into bottom-left page space, anchored at the baseline origin
func (l htmlLine) item(pageHeight float64) TextItem {
	size := l.fontSize
	if size == 0 {
		size = l.lineHeight
	}
	baseline := l.top + htmlAscent*l.lineHeight
	return TextItem{
		Text:      l.text,
		Transform: Matrix{size, 0, 0, size, tenths(l.left), tenths(pageHeight - baseline)},
	}
}

// tenths rounds to the writer's output precision
func tenths(v float64) float64 {
	return math.Round(v*10) / 10
}

// parsePageHTML reads the lines of one page and the page height declared on
// its container div (0 when absent)
func parsePageHTML(html string) ([]htmlLine, float64, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var height float64
	if style, ok := doc.Find("div[id^=page]").First().Attr("style"); ok {
		height = points(parseStyle(style)["height"])
	}

	var lines []htmlLine
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := strings.TrimRight(p.Text(), "\r\n")
		if text == "" {
			return
		}
		style, _ := p.Attr("style")
		props := parseStyle(style)

		line := htmlLine{
			text:       text,
			left:       points(props["left"]),
			top:        points(props["top"]),
			lineHeight: points(props["line-height"]),
		}
		if spanStyle, ok := p.Find("span").First().Attr("style"); ok {
			line.fontSize = points(parseStyle(spanStyle)["font-size"])
		}
		lines = append(lines, line)
	})

	return lines, height, nil
}

// parseStyle splits an inline CSS declaration list
func parseStyle(style string) map[string]string {
	props := make(map[string]string)
	for _, decl := range strings.Split(style, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		props[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}
	return props
}

// points parses a CSS length such as "72.5pt"; unknown values are 0
func points(v string) float64 {
	v = strings.TrimSuffix(strings.TrimSpace(v), "pt")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}
