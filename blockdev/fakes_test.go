package blockdev

import (
	"bytes"
	"os"

	"github.com/pkg/errors"
)

type fakeHandle struct {
	*bytes.Reader
	size   uint64
	closed bool
}

func newFakeHandle(data []byte) *fakeHandle {
	return &fakeHandle{Reader: bytes.NewReader(data), size: uint64(len(data))}
}

func (h *fakeHandle) Size() uint64 { return h.size }

func (h *fakeHandle) Close() error {
	h.closed = true
	return nil
}

// fakeDevices serves handles by reference and by path and records every
// open attempt.
type fakeDevices struct {
	refs       map[Reference]*fakeHandle
	refErrs    map[Reference]error
	paths      map[string]*fakeHandle
	attempts   []Reference
	pathsTried []string
}

var errNotFound = errors.New("the system cannot find the file specified")

func (f *fakeDevices) Open(ref Reference) (Handle, error) {
	f.attempts = append(f.attempts, ref)
	if err, ok := f.refErrs[ref]; ok {
		return nil, err
	}
	if h, ok := f.refs[ref]; ok {
		return h, nil
	}
	return nil, errNotFound
}

func (f *fakeDevices) OpenPath(path string) (Handle, error) {
	f.pathsTried = append(f.pathsTried, path)
	if h, ok := f.paths[path]; ok {
		return h, nil
	}
	return nil, errNotFound
}

type fakeProber struct {
	candidates    []Candidate
	candidatesErr error
	numbers       map[string]uint64
	sizes         map[string]uint64
	mounts        map[string][]string
	sizeErrs      map[string]error
	numberErrs    map[string]error
}

func (p *fakeProber) Candidates() ([]Candidate, error) {
	return p.candidates, p.candidatesErr
}

func (p *fakeProber) DeviceNumber(c Candidate) (uint64, error) {
	if err := p.numberErrs[c.Path]; err != nil {
		return 0, err
	}
	return p.numbers[c.Path], nil
}

func (p *fakeProber) Size(c Candidate) (uint64, error) {
	if err := p.sizeErrs[c.Path]; err != nil {
		return 0, err
	}
	return p.sizes[c.Path], nil
}

func (p *fakeProber) MountPoints(c Candidate) ([]string, error) {
	return p.mounts[c.Path], nil
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
