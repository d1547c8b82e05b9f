package scan

import (
	"cmp"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/maruel/natural"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/dundee/rudu/pkg/cache"
	"github.com/dundee/rudu/pkg/fsmeta"
	"github.com/dundee/rudu/pkg/ioband"
	"github.com/dundee/rudu/pkg/memlimit"
	"github.com/dundee/rudu/pkg/owner"
)

// nodeResult holds the disk-usage-phase output for one walked node, indexed
// in lockstep with the nodes slice it was computed from.
type nodeResult struct {
	size  int64
	meta  fsmeta.DirMeta
	found bool
}

// defaultCacheTTL is the default --cache-ttl, 7 days.
const defaultCacheTTL = 7 * 24 * 60 * 60

// memoryCheckEvery derives the poll cadence K from the configured memory
// check interval T: the shorter the interval, the more often the monitor is
// cheap enough to poll without becoming the bottleneck for very large, very
// fast trees.
func memoryCheckEvery(t time.Duration) int {
	switch {
	case t <= 100*time.Millisecond:
		return 500
	case t <= 200*time.Millisecond:
		return 1000
	default:
		return 2000
	}
}

// Scan runs one full scan of opts.Root according to opts and returns the
// composed, sorted result.
func Scan(opts Options) (*Result, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, errors.Wrap(err, "resolving scan root")
	}
	if _, err := os.Stat(root); err != nil {
		return nil, errors.Wrapf(err, "root path %s is not usable", root)
	}

	if opts.ThreadStrategy == StrategyWorkStealingUneven {
		return runWorkStealing(root, opts)
	}

	ttl := opts.CacheTTL
	if ttl == 0 {
		ttl = defaultCacheTTL
	}

	store := cache.New()
	if opts.NoCache {
		store.SetEnabled(false)
	}

	limitMB := opts.MemoryLimitMB
	if limitMB == 0 {
		limitMB = memlimit.DefaultLimitMB()
	}
	interval := opts.MemoryCheckInterval
	if interval == 0 {
		interval = memlimit.DefaultCheckInterval
	}
	monitor := memlimit.NewWithInterval(limitMB, interval)

	var timings []PhaseTiming
	timeIt := func(name string, fn func()) {
		start := time.Now()
		fn()
		timings = append(timings, PhaseTiming{Name: name, Duration: time.Since(start)})
	}

	var rootMtime *time.Time
	if rmInfo, err := os.Stat(root); err == nil {
		mt := rmInfo.ModTime()
		rootMtime = &mt
	}

	var loaded map[string]cache.Entry
	if !opts.NoCache {
		loaded = store.Load(root, ttl)
	} else {
		loaded = map[string]cache.Entry{}
	}

	var nodes []walkNode
	var cacheHits int
	var served []FileEntry
	var reused map[string]cache.Entry
	timeIt("walk", func() {
		nodes, cacheHits, served, reused = walkTree(root, opts.Exclude, loaded, nil)
	})

	throttle := ioband.New(opts.IOPermitsPerSecond, opts.IODelay)

	results := make([]nodeResult, len(nodes))

	memStatus := MemoryNormal
	memoryLimitHit := false
	checkEvery := memoryCheckEvery(interval)

	timeIt("disk-usage", func() {
		workers := workerCount(opts.ThreadStrategy, opts.Threads)
		jobs := make(chan int)
		var wg sync.WaitGroup

		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					n := nodes[i]
					if n.CacheHit {
						continue
					}
					if err := throttle.Acquire(context.Background()); err != nil {
						log.WithError(err).Debug("scan: throttle wait interrupted")
					}
					if n.IsDir {
						meta, ok := fsmeta.Stat(n.Path)
						results[i] = nodeResult{meta: meta, found: ok}
					} else {
						results[i] = nodeResult{size: fsmeta.Usage(n.Path), found: true}
					}
				}
			}()
		}

	feed:
		for i := range nodes {
			if i%checkEvery == 0 && monitor.ExceedsLimit() {
				memoryLimitHit = true
				memStatus = MemoryLimitHit
				break feed
			}
			jobs <- i
		}
		close(jobs)
		wg.Wait()
	})

	if !memoryLimitHit && monitor.NearingLimit() {
		memStatus = MemoryNearingLimit
		store.SetEnabled(false)
	}

	sizeAgg := newAggregateMap()
	var inodeAgg *aggregateMap
	if opts.ShowInodes && memStatus != MemoryNearingLimit {
		inodeAgg = newAggregateMap()
	}

	timeIt("aggregate", func() {
		for i, n := range nodes {
			if n.Depth == 0 {
				continue // root has no parent to credit
			}
			parent := filepath.Dir(n.Path)

			var size int64
			if n.CacheHit {
				size = reused[n.Path].Size
			} else if !n.IsDir {
				size = results[i].size
			}
			// fresh directories contribute nothing directly; their total is
			// the sum already landed in sizeAgg by their descendants.

			if !n.IsDir || n.CacheHit {
				for anc := parent; ; anc = filepath.Dir(anc) {
					sizeAgg.Add(anc, size)
					if anc == root || anc == filepath.Dir(anc) {
						break
					}
				}
			}

			if inodeAgg != nil {
				inodeAgg.Add(parent, 1)
			}
		}
	})

	var ownerResolver *owner.Resolver
	if opts.ShowOwner {
		ownerResolver = owner.New()
	}

	var entries []FileEntry
	for i, n := range nodes {
		if n.CacheHit {
			continue // already represented via `served`
		}
		fe := FileEntry{Path: n.Path}
		if n.IsDir {
			fe.Kind = cache.KindDirectory
			fe.Size = sizeAgg.Get(n.Path)
		} else {
			fe.Kind = cache.KindFile
			fe.Size = results[i].size
		}
		if opts.ShowOwner && n.IsDir && results[i].found {
			fe.Owner = ownerResolver.Resolve(results[i].meta.OwnerID)
		}
		if inodeAgg != nil && n.IsDir {
			c := int(inodeAgg.Get(n.Path))
			fe.Inodes = &c
		}
		entries = append(entries, fe)
	}
	entries = append(entries, served...)
	entries = applyDepthAndFileFilter(entries, root, opts)

	sortEntries(entries, opts.Sort)

	if !opts.NoCache && memStatus != MemoryLimitHit {
		newCacheEntries := buildCacheEntries(nodes, results, reused, sizeAgg, inodeAgg, root)
		if err := store.Save(root, newCacheEntries, rootMtime); err != nil {
			log.WithError(err).Warn("scan: failed to persist cache")
		}
	}

	var bytesFromCache, bytesScanned int64
	for _, n := range nodes {
		if n.CacheHit {
			bytesFromCache += reused[n.Path].Size
		}
	}
	for i, n := range nodes {
		if !n.IsDir && !n.CacheHit {
			bytesScanned += results[i].size
		}
	}

	cacheTotal := 0
	if !opts.NoCache {
		cacheTotal = cacheHits + countFreshDirs(nodes)
	}

	return &Result{
		Entries:        entries,
		CacheHits:      cacheHits,
		CacheTotal:     cacheTotal,
		MemoryStatus:   memStatus,
		MemoryLimitHit: memoryLimitHit,
		PhaseTimings:   timings,
		BytesFromCache: bytesFromCache,
		BytesScanned:   bytesScanned,
	}, nil
}

func countFreshDirs(nodes []walkNode) int {
	n := 0
	for _, nd := range nodes {
		if nd.IsDir && !nd.CacheHit {
			n++
		}
	}
	return n
}

// applyDepthAndFileFilter implements --depth's emission semantics: directories
// up to and including depth N are kept, files only at exactly depth N (or
// any depth when the limit is nil). --show-files=false drops files outright.
func applyDepthAndFileFilter(entries []FileEntry, root string, opts Options) []FileEntry {
	if opts.Depth == nil && opts.ShowFiles {
		return entries
	}
	out := entries[:0:0]
	for _, e := range entries {
		if e.Kind == cache.KindFile && !opts.ShowFiles {
			continue
		}
		if opts.Depth != nil {
			depth := pathDepth(root, e.Path)
			if e.Kind == cache.KindDirectory && depth > *opts.Depth {
				continue
			}
			if e.Kind == cache.KindFile && depth != *opts.Depth {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

func pathDepth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return len(strings.Split(filepath.ToSlash(rel), "/"))
}

// sortEntries sorts the final entry list. A stable sort isn't strictly
// required for ties, but SortStableFunc costs nothing here and gives
// deterministic output for tests.
func sortEntries(entries []FileEntry, mode SortMode) {
	switch mode {
	case SortByName:
		slices.SortStableFunc(entries, func(a, b FileEntry) int {
			return compareNatural(a.Path, b.Path)
		})
	default:
		slices.SortStableFunc(entries, func(a, b FileEntry) int {
			return cmp.Compare(b.Size, a.Size)
		})
	}
}

// compareNatural adapts natural.Less (a strict less-than predicate) to the
// three-way comparator slices.SortStableFunc expects.
func compareNatural(a, b string) int {
	switch {
	case natural.Less(a, b):
		return -1
	case natural.Less(b, a):
		return 1
	default:
		return 0
	}
}

// buildCacheEntries assembles the entries map handed to Store.Save: every
// freshly-scanned directory and file gets a fresh CacheEntry (files carry
// only their size, so a later cache hit on their directory can re-emit
// them), and everything reused from a valid cache hit (the hit directory
// itself plus its rehydrated descendants) is carried forward unchanged.
func buildCacheEntries(
	nodes []walkNode,
	results []nodeResult,
	reused map[string]cache.Entry,
	sizeAgg *aggregateMap,
	inodeAgg *aggregateMap,
	root string,
) map[string]cache.Entry {
	out := make(map[string]cache.Entry, len(nodes)+len(reused))
	for p, e := range reused {
		out[p] = e
	}
	for i, n := range nodes {
		if n.CacheHit || !results[i].found {
			continue
		}
		if !n.IsDir {
			out[n.Path] = cache.NewEntry(
				n.Path, results[i].size, time.Time{}, 0, nil, nil, cache.KindFile,
			)
			continue
		}
		var inodeCnt *uint64
		if inodeAgg != nil {
			c := uint64(inodeAgg.Get(n.Path))
			inodeCnt = &c
		}
		ownerID := results[i].meta.OwnerID
		out[n.Path] = cache.NewEntry(
			n.Path, sizeAgg.Get(n.Path), results[i].meta.Mtime, results[i].meta.Nlink,
			inodeCnt, &ownerID, cache.KindDirectory,
		)
	}
	return out
}
