// Package ratelimit throttles expensive operations per caller.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether a caller identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// SlidingWindowLimiter allows at most limit calls per key in any window
type SlidingWindowLimiter struct {
	mu         sync.Mutex
	windows    map[string]*window
	limit      int
	windowSize time.Duration
	now        func() time.Time
}

type window struct {
	requests []time.Time
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter
func NewSlidingWindowLimiter(limit int, windowSize time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		windows:    make(map[string]*window),
		limit:      limit,
		windowSize: windowSize,
		now:        time.Now,
	}
}

// WithClock replaces the time source
func (l *SlidingWindowLimiter) WithClock(now func() time.Time) *SlidingWindowLimiter {
	l.now = now
	return l
}

// Allow records a call for key and reports whether it fits in the window
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.windows[key]
	if !exists {
		w = &window{}
		l.windows[key] = w
	}

	now := l.now()
	windowStart := now.Add(-l.windowSize)

	// Drop calls that fell out of the window
	valid := w.requests[:0]
	for _, reqTime := range w.requests {
		if reqTime.After(windowStart) {
			valid = append(valid, reqTime)
		}
	}
	w.requests = valid

	if len(w.requests) >= l.limit {
		return false, nil
	}

	w.requests = append(w.requests, now)
	return true, nil
}

// Reset forgets all calls recorded for key
func (l *SlidingWindowLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.windows, key)
	return nil
}
