package cache

import (
	"encoding/gob"
	"time"

	"github.com/cespare/xxhash/v2"
)

func init() {
	gob.RegisterName("cache.Entry", &Entry{})
	gob.RegisterName("cache.Header", &Header{})
	gob.RegisterName("cache.legacyEntries", legacyEntries{})
}

// EntryKind distinguishes a file entry from a directory entry in the cache.
// The cache carries file entries so a cache-hit directory's files can be
// re-emitted, but only directory entries ever drive a skip decision.
type EntryKind uint8

const (
	KindFile EntryKind = iota
	KindDirectory
)

// Entry is the persisted metadata for one directory (or file) ever
// scanned. Validity against a freshly observed directory is mtime+nlink
// equality; see Entry.Valid.
type Entry struct {
	PathHash uint64
	Path     string
	Size     int64
	Mtime    time.Time
	Nlink    uint64

	// InodeCount is the previously computed direct-child count. nil means
	// inode counting was disabled for the scan that wrote this entry.
	InodeCount *uint64

	// OwnerID is the directory's owning uid, if resolved at write time.
	OwnerID *uint32

	Kind EntryKind
}

// Valid reports whether e is still trustworthy against a directory currently
// observed to have the given mtime and nlink.
func (e Entry) Valid(currentMtime time.Time, currentNlink uint64) bool {
	return e.Mtime.Equal(currentMtime) && e.Nlink == currentNlink
}

// Header carries the per-file metadata that gates whole-cache invalidation:
// the tool version that wrote it, when it was created, which root it was
// built under, and that root's mtime at write time.
type Header struct {
	RootPath     string
	CreationTime int64 // unix seconds
	ToolVersion  string
	RootMtime    *int64 // unix seconds, optional
}

// Cache is the full on-disk structure: a header plus the path_hash-keyed
// entry map.
type Cache struct {
	Header  Header
	Entries map[uint64]Entry
}

// legacyEntries is the pre-header on-disk format: a bare path->entry map.
// load accepts this format and lifts it to a Cache with a synthetic header.
type legacyEntries map[string]Entry

// PathHash returns the 64-bit non-cryptographic hash used as the cache's
// on-disk primary key.
func PathHash(path string) uint64 {
	return xxhash.Sum64String(path)
}

// newEntry builds an Entry with its PathHash populated from Path, so the
// hash-matches-path property holds by construction rather than by caller
// discipline.
func newEntry(path string, size int64, mtime time.Time, nlink uint64,
	inodeCount *uint64, ownerID *uint32, kind EntryKind,
) Entry {
	return Entry{
		PathHash:   PathHash(path),
		Path:       path,
		Size:       size,
		Mtime:      mtime,
		Nlink:      nlink,
		InodeCount: inodeCount,
		OwnerID:    ownerID,
		Kind:       kind,
	}
}

// NewEntry is the exported constructor used by the scanner when composing a
// freshly observed directory into a cacheable entry.
func NewEntry(path string, size int64, mtime time.Time, nlink uint64,
	inodeCount *uint64, ownerID *uint32, kind EntryKind,
) Entry {
	return newEntry(path, size, mtime, nlink, inodeCount, ownerID, kind)
}
