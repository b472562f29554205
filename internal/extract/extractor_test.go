// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdflens/internal/engine"
)

func TestExtract_SingleItem(t *testing.T) {
	fx := engine.NewFixture([]engine.TextItem{
		{Text: "Hello", Transform: engine.Matrix{1, 0, 0, 1, 72, 700}},
	})

	records, err := NewExtractor(fx, 0).Extract(context.Background(), []byte("%PDF-1.4"))
	require.NoError(t, err)

	assert.Equal(t, []Record{{Text: "Hello", X: 72, Y: 700}}, records)
}

func TestExtract_PageOrderThenEmissionOrder(t *testing.T) {
	fx := engine.NewFixture(
		[]engine.TextItem{engine.Item("A", 10, 20), engine.Item("B", 30, 40)},
		[]engine.TextItem{engine.Item("C", 5, 5)},
	)

	records, err := NewExtractor(fx, 0).Extract(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []Record{
		{Text: "A", X: 10, Y: 20},
		{Text: "B", X: 30, Y: 40},
		{Text: "C", X: 5, Y: 5},
	}, records)
}

func TestExtract_CountIsSumOfPageItems(t *testing.T) {
	var pages [][]engine.TextItem
	want := 0
	for p := 0; p < 7; p++ {
		var items []engine.TextItem
		for i := 0; i < p*3; i++ {
			items = append(items, engine.Item("w", float64(i), float64(p)))
		}
		want += len(items)
		pages = append(pages, items)
	}

	records, err := NewExtractor(engine.NewFixture(pages...), 0).Extract(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, records, want)
}

func TestExtract_EmptyDocument(t *testing.T) {
	records, err := NewExtractor(engine.NewFixture(), 0).Extract(context.Background(), nil)
	require.NoError(t, err)

	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestExtract_Idempotent(t *testing.T) {
	fx := engine.NewFixture(
		[]engine.TextItem{engine.Item("A", 1.5, 2.25), engine.Item("", 0, 0)},
		[]engine.TextItem{engine.Item("B", -3, 4)},
	)
	x := NewExtractor(fx, 0)

	first, err := x.Extract(context.Background(), []byte("same"))
	require.NoError(t, err)
	second, err := x.Extract(context.Background(), []byte("same"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestExtract_OpenError(t *testing.T) {
	fx := &engine.Fixture{Default: engine.FixtureDoc{OpenErr: engine.ErrEncrypted}}

	records, err := NewExtractor(fx, 0).Extract(context.Background(), nil)

	assert.Nil(t, records)
	assert.ErrorIs(t, err, engine.ErrEncrypted)
}

func TestExtract_PageErrorNamesPage(t *testing.T) {
	fx := &engine.Fixture{Default: engine.FixtureDoc{
		Pages:    [][]engine.TextItem{{engine.Item("a", 0, 0)}, {engine.Item("b", 0, 0)}},
		PageErrs: map[int]error{2: engine.ErrMalformed},
	}}

	records, err := NewExtractor(fx, 0).Extract(context.Background(), nil)

	assert.Nil(t, records)
	assert.ErrorIs(t, err, engine.ErrMalformed)
	assert.Contains(t, err.Error(), "page 2")
}

func TestExtract_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExtractor(engine.NewFixture([]engine.TextItem{engine.Item("a", 0, 0)}), 0).Extract(ctx, nil)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestExtract_Timeout(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	fx := &engine.Fixture{Default: engine.FixtureDoc{
		Pages: [][]engine.TextItem{{engine.Item("a", 0, 0)}},
		Gate:  gate,
	}}

	_, err := NewExtractor(fx, 10*time.Millisecond).Extract(context.Background(), nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExtractor_EngineName(t *testing.T) {
	assert.Equal(t, "fixture", NewExtractor(engine.NewFixture(), 0).EngineName())
}
