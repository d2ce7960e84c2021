package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type record struct {
	count   int64
	resetAt time.Time
}

// MemoryStore is a process-local counter backend. Counters are lost on
// restart and are only visible to one node, which is acceptable for
// single-instance deployments. Expired records are evicted by a background
// sweep so the map stays bounded.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*record
	now     func() time.Time
}

// NewMemoryStore creates an empty in-process counter store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*record),
		now:     time.Now,
	}
}

// SetClock overrides the store's time source. Used in tests.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// windowEnd reports when the aligned fixed window containing now rolls over.
// Buckets are anchored at floor(now/window), the same alignment RedisStore
// uses, so the limiter's RetryAfter hint is exact for both backends.
func windowEnd(now time.Time, window time.Duration) time.Time {
	elapsed := now.UnixMilli() % window.Milliseconds()
	return now.Add(time.Duration(window.Milliseconds()-elapsed) * time.Millisecond)
}

// Incr implements Store
func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	r, ok := s.records[key]
	if !ok || !r.resetAt.After(now) {
		s.records[key] = &record{count: 1, resetAt: windowEnd(now, window)}
		return 1, nil
	}

	r.count++
	return r.count, nil
}

// Peek implements Store
func (s *MemoryStore) Peek(_ context.Context, key string, _ time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[key]
	if !ok || !r.resetAt.After(s.now()) {
		return 0, nil
	}
	return r.count, nil
}

// StartSweep launches a background goroutine that periodically drops expired
// records. The critical section is short (single map pass under the same
// mutex Incr uses) so sweeping never blocks request handling for long.
func (s *MemoryStore) StartSweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go s.run(ctx, interval)
}

func (s *MemoryStore) run(ctx context.Context, interval time.Duration) {
	slog.Info("rate limit sweep worker started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("rate limit sweep worker stopped")
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, r := range s.records {
		if !r.resetAt.After(now) {
			delete(s.records, key)
			removed++
		}
	}

	if removed > 0 {
		slog.Debug("swept expired rate limit records", "removed", removed, "remaining", len(s.records))
	}
}

// Len reports the number of live records. Used in tests and the health check.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
