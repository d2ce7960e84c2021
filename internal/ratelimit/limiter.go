package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Store is the pluggable counter backend. Incr atomically increments the
// counter for key inside the window bucket containing now and returns the
// resulting count. A count of 1 means the window just opened.
//
// Peek returns the current count without incrementing, so a saturated window
// does not grow without bound under a flood.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	Peek(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Result is the outcome of a single rate-limit check
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter enforces a fixed-window request budget per client key.
// Construct one per policy; instances never share counters because each
// prefixes its keys with the policy name.
type Limiter struct {
	store  Store
	prefix string
	window time.Duration
	max    int
	now    func() time.Time
}

// Option customizes a Limiter
type Option func(*Limiter)

// WithClock overrides the limiter's time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter allowing max requests per window for each key
func New(store Store, prefix string, window time.Duration, max int, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		prefix: prefix,
		window: window,
		max:    max,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check records one request for key and reports whether it is within budget.
//
// The counter is only incremented while the window still has room; once the
// budget is exhausted further checks observe the count without touching it.
// If the backing store fails the limiter fails open: blocking all traffic on
// a counter outage is worse than briefly losing rate-limit precision.
func (l *Limiter) Check(ctx context.Context, key string) Result {
	storeKey := l.prefix + ":" + key

	count, err := l.store.Peek(ctx, storeKey, l.window)
	if err != nil {
		slog.Warn("rate limit store unavailable, failing open",
			"prefix", l.prefix, "error", err)
		return Result{Allowed: true, Remaining: l.max - 1}
	}

	if count >= int64(l.max) {
		return Result{Allowed: false, Remaining: 0, RetryAfter: l.retryAfter()}
	}

	count, err = l.store.Incr(ctx, storeKey, l.window)
	if err != nil {
		slog.Warn("rate limit store unavailable, failing open",
			"prefix", l.prefix, "error", err)
		return Result{Allowed: true, Remaining: l.max - 1}
	}

	if count > int64(l.max) {
		// Lost the race against concurrent requests for the same key.
		return Result{Allowed: false, Remaining: 0, RetryAfter: l.retryAfter()}
	}

	return Result{Allowed: true, Remaining: l.max - int(count)}
}

// Window returns the configured window length
func (l *Limiter) Window() time.Duration {
	return l.window
}

// retryAfter reports how long until the current fixed window rolls over
func (l *Limiter) retryAfter() time.Duration {
	now := l.now()
	elapsed := now.UnixMilli() % l.window.Milliseconds()
	return time.Duration(l.window.Milliseconds()-elapsed) * time.Millisecond
}
