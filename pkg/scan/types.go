package scan

import (
	"time"

	"github.com/dundee/rudu/pkg/cache"
	"github.com/dundee/rudu/pkg/exclude"
)

// FileEntry is the scanner's output record, one per visited file or
// directory that survives filters.
type FileEntry struct {
	Path   string
	Size   int64
	Owner  string // empty unless ShowOwner was requested
	Inodes *int   // direct child count; only set for directories when ShowInodes
	Kind   cache.EntryKind
}

// SortMode selects the final ordering of a ScanResult's entries.
type SortMode int

const (
	SortBySize SortMode = iota
	SortByName
)

// ThreadStrategy selects how the scanner sizes its worker pool.
type ThreadStrategy int

const (
	// StrategyDefault sizes the scan's worker pool to GOMAXPROCS.
	StrategyDefault ThreadStrategy = iota
	// StrategyFixed uses a pool of exactly N workers (GOMAXPROCS when N is
	// not positive).
	StrategyFixed
	// StrategyCpuMinus1 leaves one core free for the OS.
	StrategyCpuMinus1
	// StrategyIOHeavy oversubscribes for blocking I/O.
	StrategyIOHeavy
	// StrategyWorkStealingUneven routes the scan through the work-stealing
	// scheduler instead of the standard three-phase pipeline.
	StrategyWorkStealingUneven
)

// MemoryStatus reports how a scan concluded with respect to its memory
// budget.
type MemoryStatus int

const (
	MemoryNormal MemoryStatus = iota
	MemoryNearingLimit
	MemoryLimitHit
)

func (s MemoryStatus) String() string {
	switch s {
	case MemoryNearingLimit:
		return "nearing-limit"
	case MemoryLimitHit:
		return "limit-hit"
	default:
		return "normal"
	}
}

// PhaseTiming records the wall-clock duration of one individually-timeable
// scan phase.
type PhaseTiming struct {
	Name     string
	Duration time.Duration
}

// Options configures a single Scan invocation.
type Options struct {
	Root string

	// Depth limits emission: directories up to and including Depth, files
	// only at exactly Depth. Nil means unlimited.
	Depth *int

	Sort SortMode

	ShowFiles  bool
	ShowOwner  bool
	ShowInodes bool

	Exclude *exclude.Matcher

	Threads        int
	ThreadStrategy ThreadStrategy

	NoCache  bool
	CacheTTL int64 // seconds; default is 604800 (7 days)

	MemoryLimitMB       uint64
	MemoryCheckInterval time.Duration

	// IOPermitsPerSecond and IODelay throttle the disk-usage phase's
	// per-entry stat calls (0 disables each); the walk's directory listings
	// are not throttled.
	IOPermitsPerSecond int
	IODelay            time.Duration
}

// Result is everything a Scan invocation reports. BytesFromCache and
// BytesScanned are a supplemental diagnostic alongside CacheHits/CacheTotal.
type Result struct {
	Entries        []FileEntry
	CacheHits      int
	CacheTotal     int
	MemoryStatus   MemoryStatus
	MemoryLimitHit bool
	PhaseTimings   []PhaseTiming

	BytesFromCache int64
	BytesScanned   int64
}

// Duration sums PhaseTimings, giving the total wall-clock cost of the scan.
func (r *Result) Duration() time.Duration {
	var total time.Duration
	for _, t := range r.PhaseTimings {
		total += t.Duration
	}
	return total
}
