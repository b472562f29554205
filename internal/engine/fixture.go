// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package engine

import (
	"context"
)

// FixtureDoc describes one in-memory document
type FixtureDoc struct {
	Pages [][]TextItem
	// OpenErr is returned by Open
	OpenErr error
	// PageErrs maps a 1-based page number to the error its TextItems returns
	PageErrs map[int]error
	// Gate, when set, makes every TextItems call wait for a receive or cancellation
	Gate <-chan struct{}
}

// Fixture is a deterministic in-memory Engine for tests.
// Open looks the bytes up in Docs and falls back to Default.
type Fixture struct {
	Docs    map[string]FixtureDoc
	Default FixtureDoc
}

// NewFixture returns a fixture whose default document has the given pages
func NewFixture(pages ...[]TextItem) *Fixture {
	return &Fixture{Default: FixtureDoc{Pages: pages}}
}

// Item builds a text item translated to (x, y)
func Item(text string, x, y float64) TextItem {
	return TextItem{Text: text, Transform: Matrix{1, 0, 0, 1, x, y}}
}

// Name implements Engine
func (f *Fixture) Name() string { return "fixture" }

// Open implements Engine
func (f *Fixture) Open(ctx context.Context, data []byte) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, ok := f.Docs[string(data)]
	if !ok {
		doc = f.Default
	}
	if doc.OpenErr != nil {
		return nil, doc.OpenErr
	}
	return &fixtureDocument{doc: doc}, nil
}

type fixtureDocument struct {
	doc FixtureDoc
}

func (d *fixtureDocument) NumPages() int { return len(d.doc.Pages) }

func (d *fixtureDocument) Page(ctx context.Context, n int) (Page, error) {
	if err := checkPage(n, len(d.doc.Pages)); err != nil {
		return nil, err
	}
	return &fixturePage{doc: d.doc, n: n}, nil
}

func (d *fixtureDocument) Close() error { return nil }

type fixturePage struct {
	doc FixtureDoc
	n   int
}

func (p *fixturePage) TextItems(ctx context.Context) ([]TextItem, error) {
	if p.doc.Gate != nil {
		select {
		case <-p.doc.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := p.doc.PageErrs[p.n]; err != nil {
		return nil, err
	}

	items := p.doc.Pages[p.n-1]
	out := make([]TextItem, len(items))
	copy(out, items)
	return out, nil
}
