// Package imaging copies a raw device stream into an image file chunk by chunk.
package imaging

import (
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/pkg/errors"
)

// DefaultChunkSize is the number of bytes moved per read/write cycle.
const DefaultChunkSize = 1 << 20

var (
	// ErrInterrupted may be returned by readers for a transient interruption;
	// the copy retries the read.
	ErrInterrupted = errors.New("read interrupted")
	// ErrInvalidChunkSize is returned for a non-positive chunk size.
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
)

// Op names the step of a copy that failed.
type Op string

// Copy steps
const (
	OpCreate Op = "create"
	OpRead   Op = "read"
	OpWrite  Op = "write"
)

// CopyError is a fatal copy failure. Written is the number of bytes already
// in the destination when the copy stopped.
type CopyError struct {
	Op      Op
	Written uint64
	Err     error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("%s failed after %d bytes: %v", e.Op, e.Written, e.Err)
}

func (e *CopyError) Unwrap() error { return e.Err }

func isInterrupted(err error) bool {
	return errors.Is(err, syscall.EINTR) || errors.Is(err, ErrInterrupted)
}

// Copy reads src in chunks of chunkSize bytes and writes each chunk to dst
// before reading the next. A zero-byte read or io.EOF ends the copy.
// Interrupted reads are retried without limit, keeping any bytes they
// returned; any other read or write error aborts the copy and is returned as
// a *CopyError. total is only passed to the reporter. The number of bytes written is returned.
func Copy(src io.Reader, dst io.Writer, total uint64, chunkSize int, r Reporter) (uint64, error) {
	if chunkSize <= 0 {
		return 0, ErrInvalidChunkSize
	}
	if r == nil {
		r = NopReporter{}
	}

	buf := make([]byte, chunkSize)
	var written uint64
	r.Start(total)
	for {
		n, err := src.Read(buf)
		interrupted := err != nil && err != io.EOF && isInterrupted(err)
		if err != nil && err != io.EOF && !interrupted {
			return written, &CopyError{Op: OpRead, Written: written, Err: err}
		}
		if n > 0 {
			wn, werr := dst.Write(buf[:n])
			if werr == nil && wn != n {
				werr = io.ErrShortWrite
			}
			if werr != nil {
				written += uint64(wn)
				return written, &CopyError{Op: OpWrite, Written: written, Err: werr}
			}
			written += uint64(n)
			r.Advance(uint64(n))
		}
		if interrupted {
			continue
		}
		if n == 0 || err == io.EOF {
			break
		}
	}
	r.Finish()
	return written, nil
}

// CopyToFile creates path, truncating an existing file, and copies src into
// it. Nothing is read from src when the file cannot be created. A failed copy
// leaves the bytes written so far on disk.
func CopyToFile(src io.Reader, path string, total uint64, chunkSize int, r Reporter) (uint64, error) {
	if chunkSize <= 0 {
		return 0, ErrInvalidChunkSize
	}
	out, err := os.Create(path)
	if err != nil {
		return 0, &CopyError{Op: OpCreate, Err: err}
	}
	n, err := Copy(src, out, total, chunkSize, r)
	if err != nil {
		out.Close()
		return n, err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return n, &CopyError{Op: OpWrite, Written: n, Err: errors.Wrap(err, "sync")}
	}
	if err := out.Close(); err != nil {
		return n, &CopyError{Op: OpWrite, Written: n, Err: errors.Wrap(err, "close")}
	}
	return n, nil
}
