package disk

import "golang.org/x/sys/unix"

// syncData flushes the file's data to storage with fdatasync(2), skipping
// the metadata write fsync would add to every small block.
func syncData(f File) error {
	return unix.Fdatasync(int(f.Fd()))
}

func dropCache(f File) error {
	return unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_DONTNEED)
}
