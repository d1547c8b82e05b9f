package ioband

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_BothDisabledReturnsNil(t *testing.T) {
	thr := New(0, 0)
	assert.Nil(t, thr)
	assert.False(t, thr.Enabled())
	assert.NoError(t, thr.Acquire(context.Background()))
}

func TestThrottle_FixedDelayBlocksForAtLeastTheDelay(t *testing.T) {
	thr := New(0, 20*time.Millisecond)
	assert.True(t, thr.Enabled())

	start := time.Now()
	err := thr.Acquire(context.Background())
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestThrottle_IOPSLimitAllowsInitialBurstImmediately(t *testing.T) {
	thr := New(1, 0)
	assert.True(t, thr.Enabled())

	ctx := context.Background()
	// First acquire consumes the initial burst token immediately.
	start := time.Now()
	assert.NoError(t, thr.Acquire(ctx))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestThrottle_AcquireRespectsContextCancellation(t *testing.T) {
	thr := New(0, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := thr.Acquire(ctx)
	assert.Error(t, err)
}

func TestThrottle_ResetIsSafeOnNilAndConfigured(t *testing.T) {
	var nilThrottle *Throttle
	assert.NotPanics(t, func() { nilThrottle.Reset() })

	thr := New(5, 0)
	assert.NotPanics(t, func() { thr.Reset() })
}
