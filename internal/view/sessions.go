// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package view

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pdflens/internal/logger"
)

type session struct {
	ctrl     *Controller
	lastSeen time.Time
}

// Sessions maps view IDs to their controllers. Each browser page is one view.
type Sessions struct {
	mu    sync.Mutex
	views map[string]*session
	ttl   time.Duration
	newFn func() *Controller
	now   func() time.Time
}

// NewSessions creates a registry; views idle longer than ttl are evicted by Sweep
func NewSessions(ttl time.Duration, newController func() *Controller) *Sessions {
	return &Sessions{
		views: make(map[string]*session),
		ttl:   ttl,
		newFn: newController,
		now:   time.Now,
	}
}

// Get returns the controller for id and marks the view as active
func (s *Sessions) Get(id string) (*Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.views[id]
	if !ok {
		return nil, false
	}
	sess.lastSeen = s.now()
	return sess.ctrl, true
}

// GetOrCreate returns the view for id, or a fresh view with a new ID when id is unknown or invalid
func (s *Sessions) GetOrCreate(id string) (string, *Controller, bool) {
	if _, err := uuid.Parse(id); err == nil {
		if ctrl, ok := s.Get(id); ok {
			return id, ctrl, false
		}
	}

	id = uuid.New().String()
	ctrl := s.newFn()

	s.mu.Lock()
	s.views[id] = &session{ctrl: ctrl, lastSeen: s.now()}
	s.mu.Unlock()

	logger.Debugf("[VIEW] new view %s", id)
	return id, ctrl, true
}

// Len returns the number of live views
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.views)
}

// Sweep evicts views idle for longer than the ttl and returns how many were dropped
func (s *Sessions) Sweep() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	var stale []*Controller
	for id, sess := range s.views {
		if sess.lastSeen.Before(cutoff) {
			stale = append(stale, sess.ctrl)
			delete(s.views, id)
		}
	}
	s.mu.Unlock()

	for _, ctrl := range stale {
		ctrl.Close()
	}
	if len(stale) > 0 {
		logger.Printf("[VIEW] evicted %d idle views", len(stale))
	}
	return len(stale)
}

// Run sweeps periodically until ctx is cancelled, then closes every view
func (s *Sessions) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Sessions) closeAll() {
	s.mu.Lock()
	views := s.views
	s.views = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range views {
		sess.ctrl.Close()
	}
}
