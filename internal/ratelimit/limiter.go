// Package ratelimit keeps one token bucket per caller.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter allows perMinute events per key with a burst of the same size.
// A non-positive rate disables limiting.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*entry
	limit   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
}

func New(perMinute int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*entry),
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   perMinute,
		idle:    10 * time.Minute,
		now:     time.Now,
	}
}

// Allow consumes one token for key. When refused, retry is the wait until the
// next token.
func (l *Limiter) Allow(key string) (ok bool, retry time.Duration) {
	if l == nil || l.burst <= 0 {
		return true, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, found := l.buckets[key]
	if !found {
		if len(l.buckets) > 10_000 {
			l.sweep(now)
		}
		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = e
	}
	e.lastSeen = now

	r := e.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	if delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (l *Limiter) sweep(now time.Time) {
	for k, e := range l.buckets {
		if now.Sub(e.lastSeen) > l.idle {
			delete(l.buckets, k)
		}
	}
}
