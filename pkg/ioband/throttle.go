// Package ioband limits the rate at which the scanner issues per-entry
// metadata stat calls in its disk-usage phase, protecting shared storage
// (network filesystems, spinning disks under other load) from being
// saturated by a wide parallel scan. The walk phase's directory listings
// are not throttled.
package ioband

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle combines an optional token-bucket IOPS limit with an optional
// fixed per-operation delay. Both may be configured together; a nil
// *Throttle (from New with both parameters disabled) is always a no-op, so
// callers don't need to nil-check before use.
type Throttle struct {
	maxIOPS int
	delay   time.Duration
	limiter *rate.Limiter
	mu      sync.Mutex
}

// New creates a Throttle. maxIOPS <= 0 disables IOPS limiting; delay <= 0
// disables the fixed delay. Returns nil when both are disabled.
func New(maxIOPS int, delay time.Duration) *Throttle {
	if maxIOPS <= 0 && delay <= 0 {
		return nil
	}
	t := &Throttle{maxIOPS: maxIOPS, delay: delay}
	if maxIOPS > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(maxIOPS), maxIOPS)
	}
	return t
}

// Acquire blocks until the caller may proceed with its next operation,
// applying the IOPS limit first and then the fixed delay. A nil Throttle
// returns immediately.
func (t *Throttle) Acquire(ctx context.Context) error {
	if t == nil {
		return nil
	}

	t.mu.Lock()
	limiter := t.limiter
	t.mu.Unlock()

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}

	if t.delay > 0 {
		timer := time.NewTimer(t.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// Reset replaces the IOPS limiter with a fresh one whose bucket starts full
// (maxIOPS tokens), exactly as New builds it. The fixed delay is unaffected.
func (t *Throttle) Reset() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.maxIOPS > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(t.maxIOPS), t.maxIOPS)
	}
}

// Enabled reports whether either limiting mode is active.
func (t *Throttle) Enabled() bool {
	return t != nil && (t.maxIOPS > 0 || t.delay > 0)
}
