package server

import (
	"strconv"
	"sync"
	"time"
)

// rateLimiter is a process-wide fixed-window bucket keyed by clientIP:action.
// Buckets are trimmed lazily on access, so an idle process holds no timers.
type rateLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	buckets map[string]*bucket
}

type bucket struct {
	count   int
	resetAt time.Time
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	if max <= 0 {
		max = 30
	}
	if window <= 0 {
		window = time.Minute
	}
	return &rateLimiter{
		max:     max,
		window:  window,
		buckets: make(map[string]*bucket),
	}
}

// Allow consumes one unit from the key's bucket. When the bucket is
// exhausted it returns false and the Retry-After value in seconds.
func (l *rateLimiter) Allow(key string) (retryAfter string, ok bool) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.trim(now)

	b := l.buckets[key]
	if b == nil || now.After(b.resetAt) {
		l.buckets[key] = &bucket{count: 1, resetAt: now.Add(l.window)}
		return "", true
	}
	if b.count >= l.max {
		secs := int(b.resetAt.Sub(now).Seconds()) + 1
		return strconv.Itoa(secs), false
	}
	b.count++
	return "", true
}

// trim drops expired buckets. Bounded by the number of live keys, which a
// single-instance deployment keeps small.
func (l *rateLimiter) trim(now time.Time) {
	for key, b := range l.buckets {
		if now.After(b.resetAt) {
			delete(l.buckets, key)
		}
	}
}
