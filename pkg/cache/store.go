// Package cache implements the persistent, incremental-scan cache: a single
// mmap-backed file per scanned root, keyed by a 64-bit hash of each
// directory's path, invalidated by tool version, TTL, root identity and
// root mtime.
package cache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/alexflint/go-filemutex"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Store is a handle to the incremental cache. It is safe for concurrent
// use; Load/Save/Invalidate each take the process-wide file lock for their
// duration.
type Store struct {
	enabled atomic.Bool

	// overrideDir, when set, replaces the resolved cache directory. Used by
	// tests that need a hermetic, non-XDG location.
	overrideDir string
}

// New returns a Store with caching enabled by default.
func New() *Store {
	s := &Store{}
	s.enabled.Store(true)
	return s
}

// SetEnabled flips this Store's cache switch. Disabling mid-scan (as
// the memory monitor does on nearing-limit) takes effect for the next
// Load/Save call, not retroactively.
func (s *Store) SetEnabled(v bool) { s.enabled.Store(v) }

// IsEnabled reports the current switch state.
func (s *Store) IsEnabled() bool { return s.enabled.Load() }

// resolvePath exposes the computed cache file path for root, honoring
// overrideDir when set.
func (s *Store) resolvePath(root string) (string, error) {
	if s.overrideDir != "" {
		return filepath.Join(s.overrideDir, hexName(root)), nil
	}
	return resolveCachePath(root)
}

func hexName(root string) string {
	return fmt.Sprintf("%x.bin", PathHash(root))
}

// Load returns the valid cache entries for root, keyed by path. It returns
// an empty, non-nil map whenever caching is disabled, the file is absent,
// corrupted, or fails invalidation — never an error; load failure is never a
// reason to abort a scan.
func (s *Store) Load(root string, ttlSec int64) map[string]Entry {
	if !s.IsEnabled() {
		return map[string]Entry{}
	}

	path, err := s.resolvePath(root)
	if err != nil {
		log.WithError(err).Warn("cache: could not resolve cache path")
		return map[string]Entry{}
	}

	if _, err := os.Stat(path); err != nil {
		return map[string]Entry{}
	}

	lock, err := filemutex.New(lockPath(path))
	if err != nil {
		log.WithError(err).Warn("cache: could not acquire lock for load")
		return map[string]Entry{}
	}
	if err := lock.Lock(); err != nil {
		log.WithError(err).Warn("cache: could not lock cache file")
		return map[string]Entry{}
	}
	defer lock.Unlock() //nolint:errcheck

	data, err := mmapReadAll(path)
	if err != nil {
		log.WithError(err).Warn("cache: failed to read cache file, treating as empty")
		return map[string]Entry{}
	}

	loaded, err := decodeCache(path, root, data)
	if err != nil {
		log.WithError(err).Warn("cache: corrupted cache file, discarding")
		_ = os.Remove(path)
		return map[string]Entry{}
	}

	currentRootMtime := rootMtimeSeconds(root)
	if loaded.Header.shouldInvalidate(root, ttlSec, time.Now().Unix(), currentRootMtime) {
		_ = os.Remove(path)
		return map[string]Entry{}
	}

	out := make(map[string]Entry, len(loaded.Entries))
	for _, e := range loaded.Entries {
		out[e.Path] = e
	}
	return out
}

// decodeCache tries the current (header, entries-map) gob format first and
// falls back to the legacy bare entries-map, lifting it to a synthetic
// header that marks it valid for exactly this load. A decode failure of
// both shapes is reported as corruption.
func decodeCache(path, root string, data []byte) (Cache, error) {
	var c Cache
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&c); err == nil && c.Entries != nil {
		return c, nil
	}

	var legacy legacyEntries
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&legacy); err != nil {
		return Cache{}, errors.Wrap(err, "decoding cache file "+path)
	}

	entries := make(map[uint64]Entry, len(legacy))
	for p, e := range legacy {
		e.Path = p
		e.PathHash = PathHash(p)
		entries[e.PathHash] = e
	}

	now := time.Now().Unix()
	rm := rootMtimeSeconds(root)
	return Cache{
		Header:  newHeader(root, now, rm),
		Entries: entries,
	}, nil
}

// Save persists entries atomically: serialize, write to path+".tmp" (mmap,
// falling back to buffered I/O), then rename over the final path so a
// reader never observes a partial file.
// rootMtime should be captured by the caller *before* the scan runs, since
// listing/statting the root during the scan could otherwise change it.
func (s *Store) Save(root string, entries map[string]Entry, rootMtime *time.Time) error {
	if !s.IsEnabled() {
		return nil
	}

	path, err := s.resolvePath(root)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	var rm *int64
	if rootMtime != nil {
		sec := rootMtime.Unix()
		rm = &sec
	}

	out := make(map[uint64]Entry, len(entries))
	for p, e := range entries {
		e.Path = p
		e.PathHash = PathHash(p)
		out[e.PathHash] = e
	}

	c := Cache{
		Header:  newHeader(root, time.Now().Unix(), rm),
		Entries: out,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&c); err != nil {
		return errors.Wrap(err, "encoding cache for "+root)
	}

	lock, err := filemutex.New(lockPath(path))
	if err != nil {
		return errors.Wrap(err, "acquiring cache lock")
	}
	if err := lock.Lock(); err != nil {
		return errors.Wrap(err, "locking cache file")
	}
	defer lock.Unlock() //nolint:errcheck

	tmpPath := path + ".tmp"
	if err := mmapWriteFile(tmpPath, buf.Bytes()); err != nil {
		return errors.Wrap(err, "writing cache tmp file")
	}
	return errors.Wrap(os.Rename(tmpPath, path), "renaming cache tmp file into place")
}

// Invalidate removes the cache file for root if present, returning whether
// a file was actually removed.
func (s *Store) Invalidate(root string) bool {
	path, err := s.resolvePath(root)
	if err != nil {
		return false
	}

	lock, err := filemutex.New(lockPath(path))
	if err != nil {
		return false
	}
	if err := lock.Lock(); err != nil {
		return false
	}
	defer lock.Unlock() //nolint:errcheck

	if err := os.Remove(path); err != nil {
		return false
	}
	return true
}

// Size stats the cache file for root, for diagnostics.
func (s *Store) Size(root string) (int64, error) {
	path, err := s.resolvePath(root)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func lockPath(cachePath string) string {
	return cachePath + ".lock"
}

func rootMtimeSeconds(root string) *int64 {
	info, err := os.Stat(root)
	if err != nil {
		return nil
	}
	sec := info.ModTime().Unix()
	return &sec
}

