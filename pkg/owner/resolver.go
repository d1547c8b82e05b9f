// Package owner translates a numeric user id into a display name.
//
// Resolution is layered per spec: a reentrant password-database lookup
// first, a subprocess invocation of the system's passwd-DB query tool
// second, and the decimal uid string as a last resort. Each Resolver's cache
// memoizes the result of each layer so a directory tree owned by a handful
// of users only ever pays the lookup cost once per uid, and a broken-lookup
// flag lets every subsequent call skip straight past a primary path that has
// already proven unreliable on this host.
package owner

import (
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/ristretto"
	log "github.com/sirupsen/logrus"
)

// Resolver resolves uids to names with memoization. The zero value is not
// usable; construct with New.
type Resolver struct {
	cache *ristretto.Cache

	primaryBroken atomic.Bool

	warnOnce sync.Once
}

// New creates a Resolver with its own small memoization cache. A
// disk-usage scan rarely touches more than a few dozen distinct uids, so the
// cache is sized generously above that for headroom rather than tuned.
func New() *Resolver {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 16,
		BufferItems: 64,
	})
	if err != nil {
		// ristretto.NewCache only fails on invalid config, which New never
		// produces; fall back to an always-miss cache rather than panic.
		log.WithError(err).Warn("owner: failed to create memoization cache, resolution will not be cached")
	}
	return &Resolver{cache: c}
}

// Resolve returns the display name for uid, falling back through the layers
// described in the package doc. It never returns an error; the decimal uid
// string is always a valid result.
func (r *Resolver) Resolve(uid uint32) string {
	key := uint64(uid)
	if r.cache != nil {
		if v, found := r.cache.Get(key); found {
			return v.(string)
		}
	}

	name := r.resolveUncached(uid)
	if r.cache != nil {
		r.cache.Set(key, name, int64(len(name)))
	}
	return name
}

func (r *Resolver) resolveUncached(uid uint32) string {
	if !r.primaryBroken.Load() {
		if name, ok := lookupPasswdDB(uid); ok {
			return name
		}
		// lookupPasswdDB never itself panics (it recovers in lookup.go).
		// Any not-ok return, whether from a recovered panic, a lookup error
		// or a uid absent from the database, marks the primary path broken,
		// and every later call on this Resolver skips it.
		r.primaryBroken.Store(true)
	}

	if name, ok := lookupPasswdTool(uid); ok {
		return name
	}

	r.warnOnce.Do(func() {
		log.Warn("owner: passwd database and passwd-query tool both unavailable, falling back to numeric uid")
	})
	return strconv.FormatUint(uint64(uid), 10)
}

// lookupPasswdTool shells out to `id -un <uid>`, parsing stdout as a bare
// name; `id` is present on every POSIX system this tool targets, unlike
// `getent`, which is glibc-specific.
func lookupPasswdTool(uid uint32) (string, bool) {
	out, err := exec.Command("id", "-un", strconv.FormatUint(uint64(uid), 10)).Output()
	if err != nil {
		return "", false
	}
	name := strings.TrimSpace(strings.SplitN(string(out), ":", 2)[0])
	if name == "" {
		return "", false
	}
	return name, true
}
