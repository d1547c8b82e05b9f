//go:build !unix

package fsmeta

import "os"

// usage falls back to a block-size-rounded apparent size on platforms
// without an allocated-block stat field (Windows, plan9). This is a
// conservative approximation, not the true allocation; see DefaultBlockSize.
func usage(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return roundUpBlock(info.Size()), true
}

func stat(path string) (DirMeta, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return DirMeta{}, false
	}
	return DirMeta{
		Mtime: info.ModTime(),
		// Nlink and OwnerID are unavailable through os.FileInfo on these
		// platforms; nlink changes can no longer gate cache validity here,
		// so callers fall back to mtime-only comparison.
		Nlink:   0,
		Bytes:   roundUpBlock(info.Size()),
		OwnerID: 0,
	}, true
}

func roundUpBlock(size int64) int64 {
	if size <= 0 {
		return 0
	}
	blocks := (size + DefaultBlockSize - 1) / DefaultBlockSize
	return blocks * DefaultBlockSize
}
