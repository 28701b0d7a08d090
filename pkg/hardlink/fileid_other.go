//go:build !unix && !windows

package hardlink

import "errors"

const capabilityAvailable = false

func getFileID(path string) (FileID, error) {
	return FileID{}, errors.New("file identity not supported on this platform")
}
