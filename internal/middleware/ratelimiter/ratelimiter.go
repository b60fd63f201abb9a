// Package ratelimiter keeps one token bucket per identity (client IP, email).
package ratelimiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// UserRateLimiter manages rate limiting for multiple identities. Buckets idle
// for longer than expirationTime are dropped by a background sweep.
type UserRateLimiter struct {
	mu             sync.Mutex
	limiters       map[string]*entry
	rps            rate.Limit
	burst          int
	expirationTime time.Duration
	now            func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a limiter allowing rps requests per second with the given burst
// per identity.
func New(rps float64, burst int, expirationTime time.Duration) *UserRateLimiter {
	if burst < 1 {
		burst = 1
	}
	url := &UserRateLimiter{
		limiters:       make(map[string]*entry),
		rps:            rate.Limit(rps),
		burst:          burst,
		expirationTime: expirationTime,
		now:            time.Now,
		stop:           make(chan struct{}),
	}
	go url.sweepLoop()
	return url
}

// Allow reports whether a request from identity may proceed now.
func (url *UserRateLimiter) Allow(identity string) bool {
	url.mu.Lock()
	now := url.now()
	e, ok := url.limiters[identity]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(url.rps, url.burst)}
		url.limiters[identity] = e
	}
	e.lastSeen = now
	url.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

// Len is the number of identities currently tracked.
func (url *UserRateLimiter) Len() int {
	url.mu.Lock()
	defer url.mu.Unlock()
	return len(url.limiters)
}

func (url *UserRateLimiter) sweepLoop() {
	interval := url.expirationTime
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			url.sweep()
		case <-url.stop:
			return
		}
	}
}

func (url *UserRateLimiter) sweep() {
	url.mu.Lock()
	defer url.mu.Unlock()
	cutoff := url.now().Add(-url.expirationTime)
	for id, e := range url.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(url.limiters, id)
		}
	}
}

// Stop ends the background sweep. Safe to call more than once.
func (url *UserRateLimiter) Stop() {
	url.stopOnce.Do(func() { close(url.stop) })
}
