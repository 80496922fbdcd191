package utils

import (
	"fmt"
	"syscall"
)

// MinimumFreeSpace is the minimum free disk space required before accepting
// a chunk (256MB).
const MinimumFreeSpace = 256 * 1024 * 1024

// CheckDiskSpace checks whether the filesystem at path can hold writeSize
// more bytes. Returns false with a human-readable reason when it cannot.
func CheckDiskSpace(path string, writeSize int64) (bool, string, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return false, "Failed to check disk space", fmt.Errorf("failed to stat filesystem: %w", err)
	}

	available := stat.Bavail * uint64(stat.Bsize)

	if available < MinimumFreeSpace {
		return false, "Insufficient disk space", nil
	}

	if uint64(writeSize) > available-MinimumFreeSpace {
		return false, "Write would exhaust available disk space", nil
	}

	return true, "", nil
}
