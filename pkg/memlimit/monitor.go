// Package memlimit implements a cooperative memory monitor: a throttled RSS
// sample shared by two threshold checks, nearing (95%) and exceeded (100%),
// that the scanner polls periodically to degrade gracefully under memory
// pressure instead of being OOM-killed outright.
package memlimit

import (
	"runtime"
	"sync"
	"time"

	"github.com/pbnjay/memory"
)

// DefaultFraction is the share of total system memory used to derive a
// default limit when the caller does not configure --memory-limit
// explicitly.
const DefaultFraction = 0.75

// DefaultCheckInterval is the default poll throttle between RSS samples.
const DefaultCheckInterval = 200 * time.Millisecond

const nearingFraction = 0.95

// Monitor samples process memory usage, throttled to at most one real
// sample per check interval. All methods are safe for concurrent use.
type Monitor struct {
	limitBytes uint64
	interval   time.Duration

	mu        sync.Mutex
	lastCheck time.Time
	lastValue uint64
	lastOK    bool
}

// New creates a Monitor for limitMB with the default 200ms check interval.
func New(limitMB uint64) *Monitor {
	return NewWithInterval(limitMB, DefaultCheckInterval)
}

// NewWithInterval creates a Monitor with an explicit check interval.
func NewWithInterval(limitMB uint64, interval time.Duration) *Monitor {
	return &Monitor{
		limitBytes: limitMB * 1024 * 1024,
		interval:   interval,
		// lastCheck zero-value is far enough in the past that the first
		// call always samples rather than returning a zero cached value.
	}
}

// DefaultLimitMB returns a memory limit in MB derived from a fraction of
// total system RAM, for callers that did not configure --memory-limit
// explicitly. Returns 0 (meaning "no limit should be applied") if total
// memory cannot be determined.
func DefaultLimitMB() uint64 {
	total := memory.TotalMemory()
	if total == 0 {
		return 0
	}
	return uint64(float64(total) * DefaultFraction / (1024 * 1024))
}

// ExceedsLimit reports whether RSS is at or above the configured limit.
// Returns false (bypass mode) if RSS is unavailable on this platform or no
// limit was configured — the monitor must never be a source of false
// positives.
func (m *Monitor) ExceedsLimit() bool {
	if m.limitBytes == 0 {
		return false
	}
	usage, ok := m.sample()
	if !ok {
		return false
	}
	return usage >= m.limitBytes
}

// NearingLimit reports whether RSS is at or above 95% of the configured
// limit. Shares the same throttled sample as ExceedsLimit.
func (m *Monitor) NearingLimit() bool {
	if m.limitBytes == 0 {
		return false
	}
	usage, ok := m.sample()
	if !ok {
		return false
	}
	threshold := uint64(float64(m.limitBytes) * nearingFraction)
	return usage >= threshold
}

// sample returns the current RSS estimate, refreshing it only if the check
// interval has elapsed since the last refresh.
func (m *Monitor) sample() (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if now.Sub(m.lastCheck) < m.interval {
		return m.lastValue, m.lastOK
	}
	m.lastCheck = now
	m.lastValue, m.lastOK = currentRSS()
	return m.lastValue, m.lastOK
}

// currentRSS approximates process RSS using runtime.MemStats.Sys, the
// memory obtained from the OS by the Go runtime. It is a platform-portable
// proxy rather than a true RSS read (which would require a per-OS syscall —
// getrusage on POSIX, GetProcessMemoryInfo on Windows); Sys only grows
// monotonically with real allocation, so it never under-reports pressure in
// a way that would mask an actual exceeded condition.
func currentRSS() (uint64, bool) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Sys, true
}
