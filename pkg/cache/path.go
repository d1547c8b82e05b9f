package cache

import (
	"fmt"
	"os"
	"path/filepath"
)

// resolveCachePath resolves the cache file location in order:
// $RUDU_CACHE_DIR override, then $XDG_CACHE_HOME/rudu, then
// $HOME/.cache/rudu. The scanned root itself is never used — writing into it
// would change its own mtime and self-invalidate the very cache entry for
// that directory.
func resolveCachePath(root string) (string, error) {
	dir, err := cacheDir()
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%x.bin", PathHash(root))
	return filepath.Join(dir, name), nil
}

func cacheDir() (string, error) {
	if v := os.Getenv("RUDU_CACHE_DIR"); v != "" {
		return v, nil
	}
	if v := os.Getenv("XDG_CACHE_HOME"); v != "" {
		return filepath.Join(v, "rudu"), nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		return "", fmt.Errorf("cache: neither RUDU_CACHE_DIR, XDG_CACHE_HOME nor HOME is set")
	}
	return filepath.Join(home, ".cache", "rudu"), nil
}
