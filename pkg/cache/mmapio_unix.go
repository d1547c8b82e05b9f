//go:build unix

package cache

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// mmapReadAll maps path read-only and returns a copy of its contents. The
// copy is made before the mapping is torn down so callers never hold a
// pointer into unmapped memory; for cache-file sizes (well under a typical
// directory tree's metadata footprint) this costs nothing that matters.
func mmapReadAll(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		return nil, fmt.Errorf("cache file %s is empty", path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	defer unix.Munmap(data) //nolint:errcheck

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// mmapWriteFile writes data to path via a shared read-write mapping (this is
// always called on the ".tmp" path; the caller renames over the final path
// afterward). Falls back to buffered I/O on mmap failure, which on some
// filesystems (overlayfs, certain network mounts) refuses mmap entirely.
func mmapWriteFile(path string, data []byte) error {
	if err := tryMmapWrite(path, data); err == nil {
		return nil
	}
	return bufferedWriteFile(path, data)
}

func tryMmapWrite(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if len(data) == 0 {
		// Zero-length files cannot be mmap'd; nothing to map either way.
		return nil
	}

	if err := f.Truncate(int64(len(data))); err != nil {
		return err
	}

	mapped, err := unix.Mmap(int(f.Fd()), 0, len(data), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmap %s for write: %w", path, err)
	}
	defer unix.Munmap(mapped) //nolint:errcheck

	copy(mapped, data)

	return unix.Msync(mapped, unix.MS_SYNC)
}

func bufferedWriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
