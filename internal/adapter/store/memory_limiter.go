package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MemoryLimiter is a per-client sliding-window limiter held in process memory.
// Windows are pruned lazily when their client is seen again.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	history map[string][]int64 // unix millis, oldest first
	log     *zap.Logger
}

func NewMemoryLimiter(limit int, window time.Duration, log *zap.Logger) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		history: make(map[string][]int64),
		log:     log.Named("limiter"),
	}
}

func (l *MemoryLimiter) Admit(_ context.Context, clientID string, now time.Time) bool {
	nowMs := now.UnixMilli()
	windowMs := l.window.Milliseconds()

	l.mu.Lock()
	defer l.mu.Unlock()

	stamps := l.history[clientID]
	kept := stamps[:0]
	for _, t := range stamps {
		if nowMs-t < windowMs {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.limit {
		l.history[clientID] = kept
		l.log.Warn("rate limit hit", zap.String("client", clientID), zap.Int("in_window", len(kept)))
		return false
	}
	l.history[clientID] = append(kept, nowMs)
	return true
}
