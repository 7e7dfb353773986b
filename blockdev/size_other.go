//go:build !linux && !darwin && !windows

package blockdev

import (
	"io"
	"os"
)

// deviceSize falls back to seeking, which works for regular files.
func deviceSize(f *os.File) (int64, error) {
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return size, nil
}
