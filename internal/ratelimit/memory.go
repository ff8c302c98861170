// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package ratelimit provides fixed-window request limiters keyed by client
// address. Both stores satisfy echo's middleware.RateLimiterStore.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	start time.Time
	count int
}

// Memory is a per-process fixed-window limiter.
type Memory struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	windows map[string]*window
}

// NewMemory allows limit requests per identifier within each window.
func NewMemory(limit int, windowSize time.Duration, now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		limit:   limit,
		window:  windowSize,
		now:     now,
		windows: make(map[string]*window),
	}
}

// Allow counts a request from identifier and reports whether it is within
// the limit.
func (m *Memory) Allow(identifier string) (bool, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[identifier]
	if !ok || now.Sub(w.start) >= m.window {
		m.windows[identifier] = &window{start: now, count: 1}
		return m.limit > 0, nil
	}
	if w.count >= m.limit {
		return false, nil
	}
	w.count++
	return true, nil
}

// Sweep drops windows that have ended and returns how many were removed.
func (m *Memory) Sweep() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, w := range m.windows {
		if now.Sub(w.start) >= m.window {
			delete(m.windows, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked identifiers.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

// Run sweeps expired windows once per window until ctx is done.
func (m *Memory) Run(ctx context.Context) {
	ticker := time.NewTicker(m.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
