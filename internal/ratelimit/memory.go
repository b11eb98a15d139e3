package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter implements a fixed-window in-memory rate limiter.
type MemoryLimiter struct {
	mu       sync.Mutex
	counters map[int64]windowState
}

// NewMemoryLimiter constructs a MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		counters: make(map[int64]windowState),
	}
}

// Allow checks whether the identity may run another request in its current window.
func (l *MemoryLimiter) Allow(_ context.Context, identity int64, policy Policy, now time.Time) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	next, result := decide(l.counters[identity], policy, now)
	if next.exists {
		l.counters[identity] = next
	}
	return result, nil
}
