// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/pdflens/internal/engine"
	"github.com/pdflens/internal/logger"
)

// Record is one text fragment and the page-space origin of its transform
type Record struct {
	Text string  `json:"text"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Extractor turns PDF bytes into records using an injected engine
type Extractor struct {
	engine  engine.Engine
	timeout time.Duration
}

// NewExtractor creates an extractor. A zero timeout lets extraction run unbounded.
func NewExtractor(e engine.Engine, timeout time.Duration) *Extractor {
	return &Extractor{engine: e, timeout: timeout}
}

// EngineName reports which engine backs the extractor
func (x *Extractor) EngineName() string {
	return x.engine.Name()
}

// Extract walks pages 1..N one at a time and returns their items in engine order.
// Page N+1 is not requested before page N's items are appended.
func (x *Extractor) Extract(ctx context.Context, data []byte) ([]Record, error) {
	if x.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.timeout)
		defer cancel()
	}

	start := time.Now()

	doc, err := x.engine.Open(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	numPages := doc.NumPages()
	records := make([]Record, 0)

	for n := 1; n <= numPages; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := doc.Page(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", n, err)
		}

		items, err := page.TextItems(ctx)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", n, err)
		}

		for _, item := range items {
			records = append(records, Record{
				Text: item.Text,
				X:    item.Transform.X(),
				Y:    item.Transform.Y(),
			})
		}
		logger.Debugf("[EXTRACT] page %d/%d: %d items", n, numPages, len(items))
	}

	logger.Printf("[EXTRACT] %d records from %d pages in %s (engine=%s)", len(records), numPages, time.Since(start), x.engine.Name())
	return records, nil
}
