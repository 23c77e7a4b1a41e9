//go:build !linux

package disk

func syncData(f File) error {
	return f.Sync()
}

// dropCache is a no-op where posix_fadvise is unavailable; reads may be
// served from the page cache.
func dropCache(File) error {
	return nil
}
