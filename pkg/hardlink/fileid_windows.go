//go:build windows

package hardlink

import (
	"fmt"
	"os"
	"reflect"
	"syscall"
)

const capabilityAvailable = true

// getFileID returns the volume serial + file index identity for a file on
// Windows, obtained via GetFileInformationByHandle.
func getFileID(path string) (FileID, error) {
	pathp, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return FileID{}, fmt.Errorf("convert path to UTF16: %w", err)
	}

	fi, err := os.Lstat(path)
	if err != nil {
		return FileID{}, fmt.Errorf("lstat file: %w", err)
	}

	attrs := uint32(syscall.FILE_FLAG_BACKUP_SEMANTICS)
	if isSymlink(fi) {
		// FILE_FLAG_OPEN_REPARSE_POINT, otherwise CreateFile follows the link
		attrs |= syscall.FILE_FLAG_OPEN_REPARSE_POINT
	}

	h, err := syscall.CreateFile(pathp, 0, 0, nil, syscall.OPEN_EXISTING, attrs, 0)
	if err != nil {
		return FileID{}, fmt.Errorf("open file: %w", err)
	}
	defer syscall.CloseHandle(h)

	var info syscall.ByHandleFileInformation
	if err := syscall.GetFileInformationByHandle(h, &info); err != nil {
		return FileID{}, fmt.Errorf("get file info: %w", err)
	}

	return FileID{
		Device: uint64(info.VolumeSerialNumber),
		Inode:  (uint64(info.FileIndexHigh) << 32) | uint64(info.FileIndexLow),
	}, nil
}

func isSymlink(fi os.FileInfo) bool {
	if fi.Sys().(*syscall.Win32FileAttributeData).FileAttributes&syscall.FILE_ATTRIBUTE_REPARSE_POINT == 0 {
		return false
	}

	v := reflect.Indirect(reflect.ValueOf(fi))
	reserved0 := v.FieldByName("Reserved0").Uint()

	return reserved0 == syscall.IO_REPARSE_TAG_SYMLINK ||
		reserved0 == 0xA0000003
}
