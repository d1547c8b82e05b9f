package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dundee/rudu/pkg/cache"
	"github.com/dundee/rudu/pkg/exclude"
	"github.com/dundee/rudu/pkg/fsmeta"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func TestWalkTree_VisitsAllFilesAndDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), 10)
	writeFile(t, filepath.Join(root, "sub", "b.txt"), 20)

	nodes, cacheHits, served, reused := walkTree(root, nil, nil, nil)

	assert.Equal(t, 0, cacheHits)
	assert.Empty(t, served)
	assert.Empty(t, reused)

	var paths []string
	for _, n := range nodes {
		paths = append(paths, n.Path)
	}
	assert.Contains(t, paths, root)
	assert.Contains(t, paths, filepath.Join(root, "a.txt"))
	assert.Contains(t, paths, filepath.Join(root, "sub"))
	assert.Contains(t, paths, filepath.Join(root, "sub", "b.txt"))
}

func TestWalkTree_ExcludesMatchingPaths(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "keep.txt"), 5)
	writeFile(t, filepath.Join(root, "node_modules", "pkg", "index.js"), 5)

	m, err := exclude.Compile([]string{"node_modules"})
	require.NoError(t, err)

	nodes, _, _, _ := walkTree(root, m, nil, nil)

	for _, n := range nodes {
		assert.NotContains(t, n.Path, "node_modules")
	}
}

func TestWalkTree_SymlinksAreNeverFollowed(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "real", "f.txt"), 5)
	require.NoError(t, os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "link")))

	nodes, _, _, _ := walkTree(root, nil, nil, nil)

	for _, n := range nodes {
		assert.NotEqual(t, filepath.Join(root, "link"), n.Path)
		assert.NotEqual(t, filepath.Join(root, "link", "f.txt"), n.Path)
	}
}

func TestWalkTree_CacheHitPrunesDescent(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	writeFile(t, filepath.Join(sub, "b.txt"), 20)

	meta, ok := fsmeta.Stat(sub)
	require.True(t, ok)

	entry := cache.NewEntry(sub, 999, meta.Mtime, meta.Nlink, nil, nil, cache.KindDirectory)
	cached := map[string]cache.Entry{sub: entry}

	nodes, cacheHits, served, reused := walkTree(root, nil, cached, nil)

	assert.Equal(t, 1, cacheHits)
	assert.Contains(t, reused, sub)

	for _, n := range nodes {
		assert.NotEqual(t, filepath.Join(sub, "b.txt"), n.Path, "descendant of a cache hit must not be freshly walked")
	}

	var servedPaths []string
	for _, fe := range served {
		servedPaths = append(servedPaths, fe.Path)
	}
	assert.Contains(t, servedPaths, sub)
}
