package scan

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dundee/rudu/pkg/fsmeta"
)

func TestRunWorkStealing_AggregatesSizesCorrectly(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "f1"), 100)
	writeFile(t, filepath.Join(root, "a", "f2"), 200)
	writeFile(t, filepath.Join(root, "b", "f3"), 50)

	res, err := runWorkStealing(root, Options{
		Root: root, Sort: SortByName, ShowFiles: true, ThreadStrategy: StrategyWorkStealingUneven,
	})
	require.NoError(t, err)

	dirA, ok := entryByPath(res.Entries, filepath.Join(root, "a"))
	require.True(t, ok)
	f1, ok := entryByPath(res.Entries, filepath.Join(root, "a", "f1"))
	require.True(t, ok)
	f2, ok := entryByPath(res.Entries, filepath.Join(root, "a", "f2"))
	require.True(t, ok)

	assert.Equal(t, f1.Size+f2.Size, dirA.Size)

	rootEntry, ok := entryByPath(res.Entries, root)
	require.True(t, ok)
	dirB, ok := entryByPath(res.Entries, filepath.Join(root, "b"))
	require.True(t, ok)
	assert.Equal(t, dirA.Size+dirB.Size, rootEntry.Size)
}

// TestRunWorkStealing_ManyChildrenStillAggregateCorrectly doesn't reach
// largeChildThreshold (10,000 real files would make this test prohibitively
// slow); processChildren and the data-parallel remainder path call the same
// processOne function, so a moderate fan-out exercises the same aggregation
// logic the oversized-directory branch relies on.
func TestRunWorkStealing_ManyChildrenStillAggregateCorrectly(t *testing.T) {
	root := t.TempDir()
	const n = 40
	var want int64
	for i := 0; i < n; i++ {
		path := filepath.Join(root, "wide", fmt.Sprintf("f%d", i))
		writeFile(t, path, 7)
		want += fsmeta.Usage(path)
	}

	res, err := runWorkStealing(root, Options{Root: root, ThreadStrategy: StrategyWorkStealingUneven})
	require.NoError(t, err)

	dirWide, ok := entryByPath(res.Entries, filepath.Join(root, "wide"))
	require.True(t, ok)
	assert.Equal(t, want, dirWide.Size)
}

func TestRunWorkStealing_DepthAndShowFilesFilterApplied(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "f1"), 10)

	depth := 0
	res, err := runWorkStealing(root, Options{Root: root, Depth: &depth, ShowFiles: true})
	require.NoError(t, err)

	for _, e := range res.Entries {
		assert.Equal(t, root, e.Path, "only the root directory should survive depth=0 with no files at that depth")
	}
}
