package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
)

type Config struct {
	MaxRequests int
	Window      time.Duration
	Spacing     time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxRequests: 100,
		Window:      time.Hour,
		Spacing:     domain.MinRequestDelay,
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.MaxRequests <= 0 {
		c.MaxRequests = def.MaxRequests
	}
	if c.Window <= 0 {
		c.Window = def.Window
	}
	if c.Spacing < 0 {
		c.Spacing = 0
	}
	return c
}

// Limiter combines a sliding-window request cap with a minimum spacing between
// granted requests. History updates happen under one lock; the spacing wait
// happens outside it so a waiting caller does not block eviction.
type Limiter struct {
	cfg Config

	mu      sync.Mutex
	history []time.Time
	spacing *rate.Limiter

	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error
}

func New(cfg Config) *Limiter {
	cfg = cfg.normalize()
	limit := rate.Inf
	if cfg.Spacing > 0 {
		limit = rate.Every(cfg.Spacing)
	}
	return &Limiter{
		cfg:     cfg,
		spacing: rate.NewLimiter(limit, 1),
		now:     time.Now,
		wait:    waitContext,
	}
}

// Acquire fails immediately with ErrRateLimitExceeded when the window is full,
// otherwise it reserves the next spacing slot and waits for it.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	now := l.now()
	l.evictLocked(now)
	if len(l.history) >= l.cfg.MaxRequests {
		count := len(l.history)
		l.mu.Unlock()
		return domain.WrapError(domain.ErrRateLimitExceeded, "acquire fetch slot",
			fmt.Errorf("%d requests within %s", count, l.cfg.Window))
	}
	reservation := l.spacing.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	slot := now.Add(delay)
	l.history = append(l.history, slot)
	l.mu.Unlock()

	if delay <= 0 {
		return nil
	}
	if err := l.wait(ctx, delay); err != nil {
		l.mu.Lock()
		reservation.CancelAt(l.now())
		l.removeLocked(slot)
		l.mu.Unlock()
		return err
	}
	return nil
}

// Len reports the number of requests retained in the current window.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evictLocked(l.now())
	return len(l.history)
}

func (l *Limiter) evictLocked(now time.Time) {
	keep := 0
	for _, ts := range l.history {
		if now.Sub(ts) < l.cfg.Window {
			l.history[keep] = ts
			keep++
		}
	}
	l.history = l.history[:keep]
}

func (l *Limiter) removeLocked(slot time.Time) {
	for i := len(l.history) - 1; i >= 0; i-- {
		if l.history[i].Equal(slot) {
			l.history = append(l.history[:i], l.history[i+1:]...)
			return
		}
	}
}

func waitContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
