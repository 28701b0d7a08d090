//go:build unix

package hardlink

import (
	"fmt"
	"syscall"
)

const capabilityAvailable = true

// getFileID returns the device + inode identity for a file. Direct
// syscall.Stat avoids the os.Stat FileInfo allocation.
func getFileID(path string) (FileID, error) {
	var stat syscall.Stat_t
	if err := syscall.Stat(path, &stat); err != nil {
		return FileID{}, fmt.Errorf("stat file: %w", err)
	}

	return FileID{
		Device: uint64(stat.Dev),
		Inode:  uint64(stat.Ino),
	}, nil
}
