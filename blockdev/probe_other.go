//go:build !linux && !darwin && !windows

package blockdev

type systemProber struct{}

// SystemProber returns a Prober that reports ErrUnsupported.
func SystemProber() Prober { return systemProber{} }

func (systemProber) Candidates() ([]Candidate, error)        { return nil, ErrUnsupported }
func (systemProber) DeviceNumber(Candidate) (uint64, error)  { return 0, ErrUnsupported }
func (systemProber) Size(Candidate) (uint64, error)          { return 0, ErrUnsupported }
func (systemProber) MountPoints(Candidate) ([]string, error) { return nil, ErrUnsupported }
