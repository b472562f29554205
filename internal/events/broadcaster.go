// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package events

import (
	"sync"
	"time"
)

// Event types published by a view
const (
	RecordsReplaced  = "records_replaced"
	ExtractionFailed = "extraction_failed"
	ErrorDismissed   = "error_dismissed"
)

// Event represents a change to a view's displayed state
type Event struct {
	Type      string    `json:"type"` // one of the constants above
	Timestamp time.Time `json:"timestamp"`
	Version   uint64    `json:"version"`
	File      string    `json:"file,omitempty"`
	Count     int       `json:"count"`
	Error     string    `json:"error,omitempty"`
}

// Broadcaster fans events out to subscribed channels
type Broadcaster struct {
	subscribers map[chan Event]bool
	mu          sync.RWMutex
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]bool),
	}
}

// Subscribe returns a buffered channel receiving every later event
func (eb *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, 16)

	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers[ch] = true
	return ch
}

// Unsubscribe removes and closes a subscriber channel
func (eb *Broadcaster) Unsubscribe(ch chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.subscribers[ch] {
		delete(eb.subscribers, ch)
		close(ch)
	}
}

// Subscribers returns the number of live subscriptions
func (eb *Broadcaster) Subscribers() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}

// Broadcast sends an event to all subscribers without blocking
func (eb *Broadcaster) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Channel is full, skip this subscriber
		}
	}
}
