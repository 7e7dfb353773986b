package blockdev

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// ErrUnsupported is returned by OS bindings for operations the current
// platform cannot perform.
var ErrUnsupported = errors.New("not supported on this platform")

// Handle is an open, readable block device. Size is the capacity the OS
// reported when the device was opened.
type Handle interface {
	io.ReadCloser
	Size() uint64
}

// BlockDevice is the raw-access capability the opener is built on.
type BlockDevice interface {
	// Open opens a physical disk or a volume by index.
	Open(ref Reference) (Handle, error)
	// OpenPath opens a device node or a regular file by path.
	OpenPath(path string) (Handle, error)
}

// OpenDevice is a device handle owned by one copy operation.
type OpenDevice struct {
	Name string
	Size uint64

	h Handle
}

// Read implements io.Reader on the underlying handle.
func (d *OpenDevice) Read(p []byte) (int, error) {
	return d.h.Read(p)
}

// Close releases the device handle.
func (d *OpenDevice) Close() error {
	return d.h.Close()
}

// fileHandle serves reads from an *os.File and never reads past size, so
// raw devices end cleanly at their reported capacity.
type fileHandle struct {
	f         *os.File
	size      uint64
	remaining uint64
}

func newFileHandle(f *os.File, size uint64) *fileHandle {
	return &fileHandle{f: f, size: size, remaining: size}
}

func (h *fileHandle) Read(p []byte) (int, error) {
	if h.remaining == 0 {
		return 0, io.EOF
	}
	if uint64(len(p)) > h.remaining {
		p = p[:h.remaining]
	}
	n, err := h.f.Read(p)
	h.remaining -= uint64(n)
	return n, err
}

func (h *fileHandle) Close() error { return h.f.Close() }

func (h *fileHandle) Size() uint64 { return h.size }

// openFile opens path read-only and sizes it with the platform deviceSize.
func openFile(path string) (Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	size, err := deviceSize(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "get size of %s", path)
	}
	return newFileHandle(f, uint64(size)), nil
}
