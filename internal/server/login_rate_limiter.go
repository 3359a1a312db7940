package server

import (
	"sync"
	"time"
)

// loginRateLimiter locks a key out for blockedFor after maxFailures failed
// logins inside window. A nil limiter allows everything.
type loginRateLimiter struct {
	mu          sync.Mutex
	attempts    map[string]*loginAttempts
	maxFailures int
	window      time.Duration
	blockedFor  time.Duration
	sweepEvery  int
	ops         int
}

type loginAttempts struct {
	failures     int
	windowStart  time.Time
	blockedUntil time.Time
	lastSeen     time.Time
}

func newLoginRateLimiter(maxFailures int, window, blockedFor time.Duration) *loginRateLimiter {
	if maxFailures <= 0 || window <= 0 || blockedFor <= 0 {
		return nil
	}
	return &loginRateLimiter{
		attempts:    make(map[string]*loginAttempts),
		maxFailures: maxFailures,
		window:      window,
		blockedFor:  blockedFor,
		sweepEvery:  64,
	}
}

// Allow reports whether key may attempt a login at now.
func (l *loginRateLimiter) Allow(key string, now time.Time) bool {
	if l == nil || key == "" {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	defer l.sweepLocked(now)

	entry, ok := l.attempts[key]
	if !ok {
		return true
	}
	entry.lastSeen = now
	return !now.Before(entry.blockedUntil)
}

// RegisterFailure counts one failed login for key.
func (l *loginRateLimiter) RegisterFailure(key string, now time.Time) {
	if l == nil || key == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	defer l.sweepLocked(now)

	entry, ok := l.attempts[key]
	if !ok {
		entry = &loginAttempts{}
		l.attempts[key] = entry
	}
	if entry.windowStart.IsZero() || now.Sub(entry.windowStart) > l.window {
		entry.failures = 0
		entry.windowStart = now
	}
	entry.failures++
	entry.lastSeen = now
	if entry.failures >= l.maxFailures {
		entry.blockedUntil = now.Add(l.blockedFor)
		entry.failures = 0
		entry.windowStart = time.Time{}
	}
}

// Reset forgets key after a successful login.
func (l *loginRateLimiter) Reset(key string) {
	if l == nil || key == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, key)
}

func (l *loginRateLimiter) sweepLocked(now time.Time) {
	l.ops++
	if l.ops%l.sweepEvery != 0 {
		return
	}
	staleAfter := 2 * max(l.window, l.blockedFor)
	for key, entry := range l.attempts {
		if now.Sub(entry.lastSeen) > staleAfter && !now.Before(entry.blockedUntil) {
			delete(l.attempts, key)
		}
	}
}
