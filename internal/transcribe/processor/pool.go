package processor

import (
	"context"
	"sync"
)

// semaphore is a counting semaphore bounding concurrent files.
type semaphore struct {
	ch chan struct{}
}

func newSemaphore(capacity int) *semaphore {
	return &semaphore{ch: make(chan struct{}, capacity)}
}

func (s *semaphore) acquire(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *semaphore) release() {
	<-s.ch
}

// claims guarantees at most one in-flight file per artifact path.
type claims struct {
	mu       sync.Mutex
	cond     *sync.Cond
	inFlight map[string]struct{}
}

func newClaims() *claims {
	c := &claims{inFlight: make(map[string]struct{})}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// claim resolves a target and reserves its transcript and legacy paths.
// If another file holds either path, it waits and resolves again, since
// the holder may have created the file in the meantime.
func (c *claims) claim(resolve func() (Target, error)) (Target, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		t, err := resolve()
		if err != nil || t.Cancelled {
			return t, func() {}, err
		}

		keys := claimKeys(t)
		if !c.busy(keys) {
			for _, k := range keys {
				c.inFlight[k] = struct{}{}
			}
			return t, func() { c.release(keys) }, nil
		}
		c.cond.Wait()
	}
}

func (c *claims) busy(keys []string) bool {
	for _, k := range keys {
		if _, ok := c.inFlight[k]; ok {
			return true
		}
	}
	return false
}

func (c *claims) release(keys []string) {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.inFlight, k)
	}
	c.mu.Unlock()
	c.cond.Broadcast()
}

func claimKeys(t Target) []string {
	if t.LegacyPath == "" || t.LegacyPath == t.Path {
		return []string{t.Path}
	}
	return []string{t.Path, t.LegacyPath}
}
