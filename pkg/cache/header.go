package cache

// ToolVersion identifies the cache format writer. It is a build-time value
// (set via -ldflags "-X github.com/dundee/rudu/pkg/cache.ToolVersion=...");
// a mismatch between a loaded cache's header and this value invalidates the
// cache unconditionally.
var ToolVersion = "dev"

// newHeader builds a header for a freshly written cache.
func newHeader(root string, creationTime int64, rootMtime *int64) Header {
	return Header{
		RootPath:     root,
		CreationTime: creationTime,
		ToolVersion:  ToolVersion,
		RootMtime:    rootMtime,
	}
}

// shouldInvalidate checks invalidation conditions in order: version, TTL
// (boundary inclusive), root path, root mtime.
func (h Header) shouldInvalidate(root string, ttlSec int64, now int64, currentRootMtime *int64) bool {
	if h.ToolVersion != ToolVersion {
		return true
	}
	if now-h.CreationTime >= ttlSec {
		return true
	}
	if h.RootPath != root {
		return true
	}
	if currentRootMtime == nil {
		// Could not observe the root's current mtime; invalidate to be
		// safe rather than trust a header we can no longer corroborate.
		return true
	}
	if h.RootMtime == nil || *h.RootMtime != *currentRootMtime {
		return true
	}
	return false
}
