//go:build !unix

package segment

import (
	"errors"
	"os"
)

// ErrUnsupportedPlatform is returned from Open on platforms without a
// MAP_SHARED equivalent wired up.
var ErrUnsupportedPlatform = errors.New("shared memory segments are not supported on this platform")

func mmapFile(file *os.File, size int) ([]byte, error) {
	return nil, ErrUnsupportedPlatform
}

func munmapFile(mem []byte) error {
	return nil
}
