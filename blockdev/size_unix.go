//go:build linux || darwin

package blockdev

import (
	"os"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ioctl request numbers for block device capacity
const (
	dkiocGetBlockSize  = 0x40046418 // _IOR('d', 24, uint32)
	dkiocGetBlockCount = 0x40086419 // _IOR('d', 25, uint64)
	blkGetSize64       = 0x80081272 // _IOR(0x12, 114, size_t)
)

// deviceSize returns the size of a regular file or block device in bytes.
func deviceSize(f *os.File) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "stat device")
	}
	if fi.Mode().IsRegular() {
		return fi.Size(), nil
	}

	// macOS/BSD: DKIOCGETBLOCKSIZE * DKIOCGETBLOCKCOUNT
	var blockSize uint32
	var blockCount uint64
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), dkiocGetBlockSize, uintptr(unsafe.Pointer(&blockSize)))
	if errno != 0 {
		// Linux BLKGETSIZE64
		var sizeBytes uint64
		_, _, errno = unix.Syscall(unix.SYS_IOCTL, f.Fd(), blkGetSize64, uintptr(unsafe.Pointer(&sizeBytes)))
		if errno != 0 {
			return 0, errors.Wrap(errno, "cannot determine device size")
		}
		return int64(sizeBytes), nil
	}

	_, _, errno = unix.Syscall(unix.SYS_IOCTL, f.Fd(), dkiocGetBlockCount, uintptr(unsafe.Pointer(&blockCount)))
	if errno != 0 {
		return 0, errors.Wrap(errno, "cannot get block count")
	}
	return int64(blockSize) * int64(blockCount), nil
}
