package processor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestConcLimiter(t *testing.T) {
	ctx := context.Background()
	cLimiter := NewConcLimiter(2)

	var running, peak int32
	for i := 0; i < 10; i++ {
		if err := cLimiter.Increase(ctx); err != nil {
			t.Fatal(err)
		}
		go func() {
			defer cLimiter.Decrease()
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&running, -1)
		}()
	}
	cLimiter.Wait()

	if peak > 2 {
		t.Errorf("expected at most 2 goroutines at once, got %d", peak)
	}
}

func TestConcLimiterCancelled(t *testing.T) {
	cLimiter := NewConcLimiter(1)
	if err := cLimiter.Increase(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := cLimiter.Increase(ctx); err == nil {
		t.Errorf("a full limiter must give up once the context is done")
	}
	cLimiter.Decrease()
	cLimiter.Wait()
}
