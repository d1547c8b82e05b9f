package scan

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/dundee/rudu/pkg/cache"
	"github.com/dundee/rudu/pkg/exclude"
	"github.com/dundee/rudu/pkg/fsmeta"
)

// walkNode is one directory or file surviving the exclude filter, produced
// by the sequential walk phase.
type walkNode struct {
	Path     string
	IsDir    bool
	Depth    int
	CacheHit bool // true if a valid cache entry let the walker skip descending
}

// walkTree performs the depth-first, non-symlink-following traversal.
// cached holds previously loaded cache entries keyed by path; pass a nil
// map to disable cache consultation entirely.
//
// Returns the surviving nodes for directories that were actually walked
// (i.e. not pruned by a cache hit), the count of cache hits encountered,
// and the synthetic FileEntry values produced for cache-hit subtrees.
func walkTree(root string, excl *exclude.Matcher, cached map[string]cache.Entry, depthLimit *int) (
	nodes []walkNode, cacheHits int, served []FileEntry, reused map[string]cache.Entry,
) {
	reused = make(map[string]cache.Entry)

	// depthLimit only filters which entries are *emitted*, never which
	// directories are walked — a directory's size is the sum of its whole
	// subtree, so the walk and aggregation phases must see every
	// descendant regardless of the depth the caller wants displayed.
	var recurse func(path string, depth int)
	recurse = func(path string, depth int) {
		if depth > 0 {
			rel := relOrSelf(root, path)
			if excl != nil && !excl.Empty() && excl.Match(rel) {
				return
			}
		}

		info, err := os.Lstat(path)
		if err != nil {
			log.WithError(err).WithField("path", path).Warn("scan: could not stat path, skipping")
			return
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return
		}

		if !info.IsDir() {
			nodes = append(nodes, walkNode{Path: path, IsDir: false, Depth: depth})
			return
		}

		if entry, ok := cached[path]; ok && depth > 0 {
			meta, statOK := fsmeta.Stat(path)
			if statOK && entry.Valid(meta.Mtime, meta.Nlink) {
				cacheHits++
				nodes = append(nodes, walkNode{Path: path, IsDir: true, Depth: depth, CacheHit: true})
				reused[path] = entry
				served = append(served, cacheEntryToFileEntry(entry))
				served = append(served, reuseDescendants(path, cached, excl, root, depthLimit, reused)...)
				return
			}
		}

		nodes = append(nodes, walkNode{Path: path, IsDir: true, Depth: depth})

		children, err := os.ReadDir(path)
		if err != nil {
			log.WithError(err).WithField("path", path).Warn("scan: could not read directory")
			return
		}
		sort.Slice(children, func(i, j int) bool { return children[i].Name() < children[j].Name() })
		for _, c := range children {
			recurse(filepath.Join(path, c.Name()), depth+1)
		}
	}

	recurse(root, 0)
	return nodes, cacheHits, served, reused
}

// reuseDescendants re-emits every cached entry strictly under a pruned
// directory without a fresh walk, as long as it still passes the depth
// filter and current exclude matcher.
func reuseDescendants(
	prunedDir string, cached map[string]cache.Entry, excl *exclude.Matcher, root string, depthLimit *int,
	reused map[string]cache.Entry,
) []FileEntry {
	var out []FileEntry
	prefix := prunedDir + string(filepath.Separator)

	for p, entry := range cached {
		if !strings.HasPrefix(p, prefix) {
			continue
		}

		if depthLimit != nil {
			depth := strings.Count(strings.TrimPrefix(p, root), string(filepath.Separator))
			if depth > *depthLimit {
				continue
			}
		}

		rel := relOrSelf(root, p)
		if excl != nil && !excl.Empty() && excl.Match(rel) {
			continue
		}

		reused[p] = entry
		out = append(out, cacheEntryToFileEntry(entry))
	}
	return out
}

func cacheEntryToFileEntry(e cache.Entry) FileEntry {
	fe := FileEntry{Path: e.Path, Size: e.Size, Kind: e.Kind}
	if e.InodeCount != nil {
		n := int(*e.InodeCount)
		fe.Inodes = &n
	}
	return fe
}

func relOrSelf(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
