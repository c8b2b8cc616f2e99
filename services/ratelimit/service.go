package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Result reports the outcome of a TryConsume call
type Result struct {
	Allowed      bool
	CurrentCount int
	ResetAt      time.Time
}

// Limiter counts auto-approvals in a fixed hourly window keyed by
// floor(now, 1h). A fixed window is simpler than a sliding one and
// sufficient for an approvals cap: the worst case is a short burst
// straddling a window boundary, which only ever errs toward fewer
// auto-approvals being available.
//
// The single mutex is the serialization point that makes the decision
// engine's check-then-increment atomic: two concurrent TryConsume calls
// never both succeed when one slot remains.
type Limiter struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
	logger      *zap.Logger
	now         func() time.Time
}

// NewLimiter creates a new hourly auto-approval limiter
func NewLimiter(logger *zap.Logger) *Limiter {
	return &Limiter{
		logger: logger,
		now:    time.Now,
	}
}

// TryConsume atomically checks the hourly count against limit and, when a
// slot is free, takes it. A limit of zero or less disables auto-approvals
// entirely.
func (l *Limiter) TryConsume(limit int) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.rollWindow(now)

	if limit <= 0 || l.count >= limit {
		return Result{
			Allowed:      false,
			CurrentCount: l.count,
			ResetAt:      l.windowStart.Add(time.Hour),
		}
	}

	l.count++
	return Result{
		Allowed:      true,
		CurrentCount: l.count,
		ResetAt:      l.windowStart.Add(time.Hour),
	}
}

// Peek returns the current hourly count without consuming a slot
func (l *Limiter) Peek() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollWindow(l.now())
	return l.count
}

// AtLimit reports whether the hourly count has reached limit
func (l *Limiter) AtLimit(limit int) bool {
	if limit <= 0 {
		return true
	}
	return l.Peek() >= limit
}

// rollWindow resets the counter when the hour has turned. Caller holds mu.
func (l *Limiter) rollWindow(now time.Time) {
	windowStart := now.Truncate(time.Hour)
	if !windowStart.Equal(l.windowStart) {
		if l.count > 0 {
			l.logger.Debug("rate limit window rolled",
				zap.Time("window_start", windowStart),
				zap.Int("previous_count", l.count))
		}
		l.windowStart = windowStart
		l.count = 0
	}
}
