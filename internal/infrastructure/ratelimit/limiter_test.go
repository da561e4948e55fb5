package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// newTestLimiter waits by advancing the fake clock.
func newTestLimiter(cfg Config) (*Limiter, *fakeClock, *[]time.Duration) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	waits := &[]time.Duration{}
	l := New(cfg)
	l.now = clock.Now
	l.wait = func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		if err := ctx.Err(); err != nil {
			return err
		}
		clock.Advance(d)
		return nil
	}
	return l, clock, waits
}

func TestAcquireFailsOnHundredFirstRequestWithinWindow(t *testing.T) {
	l, clock, _ := newTestLimiter(DefaultConfig())

	for i := 0; i < 100; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("acquire %d: unexpected error %v", i+1, err)
		}
		clock.Advance(3 * time.Second)
	}

	err := l.Acquire(context.Background())
	if !errors.Is(err, domain.ErrRateLimitExceeded) {
		t.Fatalf("expected rate limit exceeded, got %v", err)
	}
	if l.Len() != 100 {
		t.Fatalf("expected failed acquisition not to be recorded, got %d", l.Len())
	}

	clock.Advance(time.Hour)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("expected cap to reset after eviction, got %v", err)
	}
	if l.Len() != 1 {
		t.Fatalf("expected history of 1 after eviction, got %d", l.Len())
	}
}

func TestAcquireWaitsRemainingSpacing(t *testing.T) {
	l, clock, waits := newTestLimiter(DefaultConfig())

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clock.Advance(time.Second)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*waits) != 1 || (*waits)[0] < 2*time.Second-time.Millisecond || (*waits)[0] > 2*time.Second+time.Millisecond {
		t.Fatalf("expected one 2s wait, got %v", *waits)
	}

	clock.Advance(10 * time.Second)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*waits) != 1 {
		t.Fatalf("expected no wait after idle period, got %v", *waits)
	}
}

func TestAcquireCancelledWaitReleasesSlot(t *testing.T) {
	l, _, _ := newTestLimiter(DefaultConfig())
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if l.Len() != 1 {
		t.Fatalf("expected cancelled slot to be dropped, got %d", l.Len())
	}
}

func TestAcquireIsSafeForConcurrentCallers(t *testing.T) {
	l := New(Config{MaxRequests: 10, Window: time.Hour, Spacing: 0})

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted, rejected := 0, 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Acquire(context.Background())
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				granted++
			} else if errors.Is(err, domain.ErrRateLimitExceeded) {
				rejected++
			}
		}()
	}
	wg.Wait()

	if granted != 10 || rejected != 15 {
		t.Fatalf("expected 10 granted and 15 rejected, got %d and %d", granted, rejected)
	}
}
