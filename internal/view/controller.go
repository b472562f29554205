// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package view

import (
	"context"
	"errors"
	"sync"

	"github.com/pdflens/internal/extract"
	"github.com/pdflens/internal/logger"
	"github.com/pdflens/internal/notify"
)

// ErrSuperseded ends a task whose file selection was replaced by a newer one
var ErrSuperseded = errors.New("extraction superseded by a newer file selection")

// Extractor is the parse stage of the pipeline
type Extractor interface {
	Extract(ctx context.Context, data []byte) ([]extract.Record, error)
}

// Task is one submitted file moving through parse and replace
type Task struct {
	Gen  uint64
	File string

	done    chan struct{}
	records []extract.Record
	err     error
}

// Done is closed when the task has finished
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes or ctx ends
func (t *Task) Wait(ctx context.Context) ([]extract.Record, error) {
	select {
	case <-t.done:
		return t.records, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Controller owns a view's Presenter and runs its extraction pipeline.
// A new submission cancels the one in flight; only the newest generation
// may replace the records or raise the error indicator.
type Controller struct {
	presenter *Presenter
	extractor Extractor
	notifier  notify.Notifier
	ctx       context.Context

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	closed bool
}

// NewController creates a controller; ctx bounds every extraction it starts
func NewController(ctx context.Context, x Extractor, n notify.Notifier) *Controller {
	if n == nil {
		n = notify.Nop{}
	}
	return &Controller{
		presenter: NewPresenter(),
		extractor: x,
		notifier:  n,
		ctx:       ctx,
	}
}

// Presenter returns the view state owned by this controller
func (c *Controller) Presenter() *Presenter {
	return c.presenter
}

// supersede cancels the in-flight task and starts a new generation. Caller holds c.mu.
func (c *Controller) supersede() uint64 {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	return c.gen
}

// Submit starts parse → replace for an upload that has already been read
func (c *Controller) Submit(up extract.Upload) *Task {
	ctx, cancel := context.WithCancel(c.ctx)

	c.mu.Lock()
	gen := c.supersede()
	c.cancel = cancel
	closed := c.closed
	c.mu.Unlock()

	t := &Task{Gen: gen, File: up.Name, done: make(chan struct{})}
	if closed {
		cancel()
		t.err = ErrSuperseded
		close(t.done)
		return t
	}

	logger.Printf("[VIEW] extraction #%d started: %s (%d bytes)", gen, up.Name, len(up.Data))
	go c.run(ctx, cancel, t, up)
	return t
}

// Fail reports a read-stage failure for a new selection. It supersedes any
// in-flight task and keeps the displayed records.
func (c *Controller) Fail(file string, err error) {
	c.mu.Lock()
	gen := c.supersede()
	c.presenter.SetError(file, err)
	c.mu.Unlock()

	if file == "" {
		logger.Warnf("[VIEW] selection #%d rejected: %v", gen, err)
	} else {
		logger.Warnf("[VIEW] selection #%d rejected: %s: %v", gen, file, err)
	}
	c.notifier.Failed(file, err)
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, t *Task, up extract.Upload) {
	defer close(t.done)
	defer cancel()

	records, err := c.extractor.Extract(ctx, up.Data)
	t.records, t.err = c.apply(t.Gen, up.Name, records, err)

	switch {
	case errors.Is(t.err, ErrSuperseded):
		logger.Printf("[VIEW] extraction #%d superseded: %s", t.Gen, up.Name)
	case t.err != nil:
		logger.Errorf("[VIEW] extraction #%d failed: %s: %v", t.Gen, up.Name, t.err)
		c.notifier.Failed(up.Name, t.err)
	default:
		c.notifier.Completed(up.Name, len(t.records))
	}
}

// apply commits a finished extraction if its generation is still current
func (c *Controller) apply(gen uint64, file string, records []extract.Record, err error) ([]extract.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return nil, ErrSuperseded
	}
	c.cancel = nil

	if err != nil {
		c.presenter.SetError(file, err)
		return nil, err
	}
	c.presenter.ReplaceRecords(file, records)
	return records, nil
}

// Close cancels any in-flight extraction; later submissions are refused
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.supersede()
	c.closed = true
}
