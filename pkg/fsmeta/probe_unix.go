//go:build unix

package fsmeta

import (
	"time"

	"golang.org/x/sys/unix"
)

// usage reads st_blocks directly via unix.Stat rather than os.Stat, since
// os.FileInfo does not expose allocated blocks on any platform. The stat
// buffer comes back fully populated by the kernel before we touch it, so
// there is no uninitialized-memory hazard here.
func usage(path string) (int64, bool) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, false
	}
	return int64(st.Blocks) * 512, true
}

func stat(path string) (DirMeta, bool) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return DirMeta{}, false
	}
	sec, nsec := st.Mtim.Unix()
	return DirMeta{
		Mtime:   time.Unix(sec, nsec),
		Nlink:   uint64(st.Nlink),
		Bytes:   int64(st.Blocks) * 512,
		OwnerID: st.Uid,
	}, true
}
