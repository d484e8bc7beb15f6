package processor

import (
	"context"
	"sync"
)

// ConcLimiter bounds the number of goroutines running at once and
// waits for all of them to finish.
type ConcLimiter struct {
	wg    sync.WaitGroup
	slots chan struct{}
}

func NewConcLimiter(level int) *ConcLimiter {
	if level <= 0 {
		level = 1
	}
	return &ConcLimiter{slots: make(chan struct{}, level)}
}

// Increase blocks until a slot is free. It gives up without taking a
// slot once ctx is done.
func (c *ConcLimiter) Increase(ctx context.Context) error {
	select {
	case c.slots <- struct{}{}:
		c.wg.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Decrease releases a slot taken by Increase.
func (c *ConcLimiter) Decrease() {
	<-c.slots
	c.wg.Done()
}

func (c *ConcLimiter) Wait() {
	c.wg.Wait()
}
