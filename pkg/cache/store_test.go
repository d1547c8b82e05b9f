package cache

import (
	"bytes"
	"encoding/gob"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	s.overrideDir = t.TempDir()
	return s
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	root := t.TempDir()

	now := time.Now()
	sub := filepath.Join(root, "a")
	entries := map[string]Entry{
		root: NewEntry(root, 4096, now, 3, nil, nil, KindDirectory),
		sub:  NewEntry(sub, 100, now, 2, nil, nil, KindDirectory),
	}

	require.NoError(t, s.Save(root, entries, &now))

	loaded := s.Load(root, 604800)
	require.Len(t, loaded, 2)
	assert.Equal(t, int64(4096), loaded[root].Size)
	assert.Equal(t, int64(100), loaded[sub].Size)
}

func TestStore_LoadAbsentReturnsEmpty(t *testing.T) {
	s := newTestStore(t)
	loaded := s.Load(filepath.Join(t.TempDir(), "nope"), 604800)
	assert.NotNil(t, loaded)
	assert.Empty(t, loaded)
}

func TestStore_LoadDisabledReturnsEmpty(t *testing.T) {
	s := newTestStore(t)
	root := t.TempDir()
	now := time.Now()
	require.NoError(t, s.Save(root, map[string]Entry{
		root: NewEntry(root, 1, now, 1, nil, nil, KindDirectory),
	}, &now))

	s.SetEnabled(false)
	loaded := s.Load(root, 604800)
	assert.Empty(t, loaded)
}

func TestStore_CorruptedFileLoadsEmptyWithoutPanic(t *testing.T) {
	s := newTestStore(t)
	root := t.TempDir()

	path, err := s.resolvePath(root)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("not a gob stream at all"), 0o644))

	assert.NotPanics(t, func() {
		loaded := s.Load(root, 604800)
		assert.Empty(t, loaded)
	})

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "corrupted cache file should be removed")
}

func TestStore_ZeroSizeFileLoadsEmpty(t *testing.T) {
	s := newTestStore(t)
	root := t.TempDir()

	path, err := s.resolvePath(root)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	loaded := s.Load(root, 604800)
	assert.Empty(t, loaded)
}

func TestStore_LegacyFormatUpgradesOnLoad(t *testing.T) {
	s := newTestStore(t)
	root := t.TempDir()

	legacy := legacyEntries{
		root: NewEntry(root, 2048, time.Now(), 2, nil, nil, KindDirectory),
	}

	path, err := s.resolvePath(root)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(legacy))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	loaded := s.Load(root, 604800)
	require.Len(t, loaded, 1)
	assert.Equal(t, int64(2048), loaded[root].Size)

	// Saving again should upgrade the on-disk file to the current format.
	// The root mtime must be recorded, since a header without one always
	// invalidates on the next load.
	rootInfo, err := os.Stat(root)
	require.NoError(t, err)
	rootMtime := rootInfo.ModTime()
	require.NoError(t, s.Save(root, loaded, &rootMtime))
	reloaded := s.Load(root, 604800)
	require.Len(t, reloaded, 1)
}

func TestStore_Invalidate(t *testing.T) {
	s := newTestStore(t)
	root := t.TempDir()
	now := time.Now()
	require.NoError(t, s.Save(root, map[string]Entry{
		root: NewEntry(root, 1, now, 1, nil, nil, KindDirectory),
	}, &now))

	assert.True(t, s.Invalidate(root))
	assert.False(t, s.Invalidate(root), "second invalidate should find nothing to remove")

	loaded := s.Load(root, 604800)
	assert.Empty(t, loaded)
}

func TestHeader_TTLBoundaryIsInclusive(t *testing.T) {
	h := Header{RootPath: "/x", CreationTime: 1000, ToolVersion: ToolVersion}

	// Exactly at the boundary (now - creation == ttl) must invalidate.
	assert.True(t, h.shouldInvalidate("/x", 500, 1500, nil), "root mtime unavailable always invalidates")

	rm := int64(42)
	h.RootMtime = &rm
	assert.True(t, h.shouldInvalidate("/x", 500, 1500, &rm), "age == ttl is inclusive")
	assert.False(t, h.shouldInvalidate("/x", 500, 1499, &rm), "just under ttl stays valid")
}

func TestHeader_InvalidatesOnVersionRootPathAndMtimeMismatch(t *testing.T) {
	rm := int64(42)
	h := Header{RootPath: "/x", CreationTime: 1000, ToolVersion: ToolVersion, RootMtime: &rm}

	assert.False(t, h.shouldInvalidate("/x", 604800, 1001, &rm))

	other := rm + 1
	assert.True(t, h.shouldInvalidate("/x", 604800, 1001, &other), "differing root mtime invalidates")
	assert.True(t, h.shouldInvalidate("/y", 604800, 1001, &rm), "differing root path invalidates")

	stale := h
	stale.ToolVersion = "old"
	assert.True(t, stale.shouldInvalidate("/x", 604800, 1001, &rm), "version mismatch invalidates")
}
