package auth

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultLoginAttemptsLimit = 5
	DefaultLoginWindow        = 15 * time.Minute
)

// Attempt is the limiter decision for a single login attempt.
type Attempt struct {
	Allowed bool
	Count   int
	ResetAt time.Time
}

// RetryAfter is the time left until the window of a rejected attempt resets.
func (a Attempt) RetryAfter(now time.Time) time.Duration {
	if a.Allowed || !a.ResetAt.After(now) {
		return 0
	}
	return a.ResetAt.Sub(now)
}

// LoginLimiter counts login attempts per source key in fixed windows.
type LoginLimiter interface {
	Allow(ctx context.Context, key string) (Attempt, error)
	Reset(ctx context.Context, key string) error
}

type rateLimitEntry struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps the entries in process memory. Entries are dropped once
// their window is over, and the number of tracked keys is bounded.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries *expirable.LRU[string, *rateLimitEntry]
	limit   int
	window  time.Duration
	now     func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration, maxKeys int) *MemoryLimiter {
	if limit <= 0 {
		limit = DefaultLoginAttemptsLimit
	}
	if window <= 0 {
		window = DefaultLoginWindow
	}
	return &MemoryLimiter{
		entries: expirable.NewLRU[string, *rateLimitEntry](maxKeys, nil, window),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Attempt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.entries.Get(key)
	if !ok || !now.Before(entry.resetAt) {
		entry = &rateLimitEntry{
			count:   1,
			resetAt: now.Add(l.window),
		}
		l.entries.Add(key, entry)
		return Attempt{Allowed: true, Count: entry.count, ResetAt: entry.resetAt}, nil
	}

	if entry.count >= l.limit {
		return Attempt{Allowed: false, Count: entry.count, ResetAt: entry.resetAt}, nil
	}

	entry.count++
	return Attempt{Allowed: true, Count: entry.count, ResetAt: entry.resetAt}, nil
}

func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries.Remove(key)
	return nil
}

func (l *MemoryLimiter) Len() int {
	return l.entries.Len()
}
