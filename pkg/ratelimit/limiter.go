// Package ratelimit throttles credential-guessing attempts against the
// login endpoints with per-key token buckets.
package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// Limiter tracks a token bucket per key. Keys are typically client IPs;
// inactive buckets are swept after the TTL.
type Limiter struct {
	capacity   int
	refillRate float64
	ttl        time.Duration
	now        func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	done      chan struct{}
	closeOnce sync.Once
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *Limiter) {
		l.now = now
	}
}

// NewLimiter creates a limiter allowing a burst of capacity requests per
// key, refilling at refillRate requests per second. A positive ttl starts
// a background sweep of inactive buckets.
func NewLimiter(capacity int, refillRate float64, ttl time.Duration, opts ...LimiterOption) *Limiter {
	l := &Limiter{
		capacity:   capacity,
		refillRate: refillRate,
		ttl:        ttl,
		now:        time.Now,
		buckets:    make(map[string]*bucket),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if ttl > 0 {
		go l.sweep()
	}
	return l
}

// Allow reports whether a request for the key may proceed, consuming one
// token when it does.
func (l *Limiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.capacity), lastRefill: now}
		l.buckets[key] = b
	}

	refill := now.Sub(b.lastRefill).Seconds() * l.refillRate
	b.tokens += refill
	if b.tokens > float64(l.capacity) {
		b.tokens = float64(l.capacity)
	}
	b.lastRefill = now

	if b.tokens < 1.0 {
		return false
	}
	b.tokens -= 1.0
	return true
}

// Reset restores a key's bucket to full capacity, for example after a
// successful login.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[key]; ok {
		b.tokens = float64(l.capacity)
		b.lastRefill = l.now()
	}
}

// ActiveKeys returns the number of keys currently tracked.
func (l *Limiter) ActiveKeys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Close stops the background sweep. The limiter stays usable; idle
// buckets just accumulate afterwards.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
	})
}

func (l *Limiter) sweep() {
	ticker := time.NewTicker(l.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			cutoff := l.now().Add(-l.ttl)
			l.mu.Lock()
			for key, b := range l.buckets {
				if b.lastRefill.Before(cutoff) {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		}
	}
}
