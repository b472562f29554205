// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package view

import (
	"sync"
	"time"

	"github.com/pdflens/internal/events"
	"github.com/pdflens/internal/extract"
)

// Failure is the dismissible error indicator shown above the table
type Failure struct {
	File    string    `json:"file,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Snapshot is a consistent copy of what the view displays
type Snapshot struct {
	Records []extract.Record `json:"records"`
	Count   int              `json:"count"`
	Error   *Failure         `json:"error"`
	Version uint64           `json:"version"`
}

// Presenter holds one view's records and publishes a re-render event on every change.
// The only mutation of the records is a full replace.
type Presenter struct {
	mu      sync.RWMutex
	records []extract.Record
	failure *Failure
	version uint64
	events  *events.Broadcaster
}

// NewPresenter creates a presenter with an empty record list
func NewPresenter() *Presenter {
	return &Presenter{
		records: []extract.Record{},
		events:  events.NewBroadcaster(),
	}
}

// Events returns the broadcaster carrying this view's re-render events
func (p *Presenter) Events() *events.Broadcaster {
	return p.events
}

// ReplaceRecords swaps in a new record list, discarding the previous one, and clears any error
func (p *Presenter) ReplaceRecords(file string, records []extract.Record) {
	next := make([]extract.Record, len(records))
	copy(next, records)

	p.mu.Lock()
	p.records = next
	p.failure = nil
	p.version++
	ev := events.Event{Type: events.RecordsReplaced, Version: p.version, File: file, Count: len(next)}
	p.mu.Unlock()

	p.events.Broadcast(ev)
}

// SetError raises the error indicator; the displayed records are left untouched
func (p *Presenter) SetError(file string, err error) {
	p.mu.Lock()
	p.failure = &Failure{File: file, Message: err.Error(), At: time.Now()}
	p.version++
	ev := events.Event{Type: events.ExtractionFailed, Version: p.version, File: file, Count: len(p.records), Error: err.Error()}
	p.mu.Unlock()

	p.events.Broadcast(ev)
}

// DismissError clears the error indicator. Returns false if none was shown.
func (p *Presenter) DismissError() bool {
	p.mu.Lock()
	if p.failure == nil {
		p.mu.Unlock()
		return false
	}
	p.failure = nil
	p.version++
	ev := events.Event{Type: events.ErrorDismissed, Version: p.version, Count: len(p.records)}
	p.mu.Unlock()

	p.events.Broadcast(ev)
	return true
}

// Records returns a copy of the current records
func (p *Presenter) Records() []extract.Record {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]extract.Record, len(p.records))
	copy(out, p.records)
	return out
}

// Snapshot returns records, error and version read under one lock
func (p *Presenter) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Snapshot{
		Records: make([]extract.Record, len(p.records)),
		Count:   len(p.records),
		Version: p.version,
	}
	copy(s.Records, p.records)
	if p.failure != nil {
		f := *p.failure
		s.Error = &f
	}
	return s
}
