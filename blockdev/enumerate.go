package blockdev

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Candidate is a device the OS enumeration reported, before it is queried.
type Candidate struct {
	// Path is what a user passes to dump for this device.
	Path  string
	Name  string
	Class Class
	Media string
	// Target is the OS object the prober queries (sysfs dir, volume GUID path, ...).
	Target string
}

// Prober exposes the low-level enumeration primitives of one OS.
type Prober interface {
	// Candidates lists devices in OS enumeration order.
	Candidates() ([]Candidate, error)
	DeviceNumber(c Candidate) (uint64, error)
	Size(c Candidate) (uint64, error)
	MountPoints(c Candidate) ([]string, error)
}

// DeviceInfo is one enumerated device. DeviceNumber and Size are nil when
// the corresponding query failed; Err holds those failures.
type DeviceInfo struct {
	Path         string
	Name         string
	Class        Class
	Media        string
	DeviceNumber *uint64
	Size         *uint64
	MountPoints  []string
	Err          error
}

// EnumerationError means the device list itself could not be produced.
type EnumerationError struct {
	Err error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("list devices: %v", e.Err)
}

func (e *EnumerationError) Unwrap() error { return e.Err }

// Enumerator builds DeviceInfo records from a Prober.
type Enumerator struct {
	Prober Prober
	Log    zerolog.Logger
}

// NewEnumerator returns an Enumerator over the running OS.
func NewEnumerator(log zerolog.Logger) *Enumerator {
	return &Enumerator{Prober: SystemProber(), Log: log}
}

// ListDevices returns one record per candidate, in candidate order. Only a
// failure to enumerate candidates fails the call; a device whose number,
// size or mount query fails is still listed with that field left empty.
func (e *Enumerator) ListDevices() ([]DeviceInfo, error) {
	candidates, err := e.Prober.Candidates()
	if err != nil {
		return nil, &EnumerationError{Err: err}
	}

	infos := make([]DeviceInfo, 0, len(candidates))
	for _, c := range candidates {
		info := DeviceInfo{
			Path:  c.Path,
			Name:  c.Name,
			Class: c.Class,
			Media: c.Media,
		}
		var errs *multierror.Error

		if n, err := e.Prober.DeviceNumber(c); err != nil {
			errs = multierror.Append(errs, errors.Wrap(err, "device number"))
		} else {
			info.DeviceNumber = &n
		}
		if size, err := e.Prober.Size(c); err != nil {
			errs = multierror.Append(errs, errors.Wrap(err, "size"))
		} else {
			info.Size = &size
		}
		if mounts, err := e.Prober.MountPoints(c); err != nil {
			errs = multierror.Append(errs, errors.Wrap(err, "mount points"))
		} else {
			info.MountPoints = mounts
		}

		if err := errs.ErrorOrNil(); err != nil {
			info.Err = err
			e.Log.Warn().Err(err).Str("device", c.Path).Msg("incomplete device information")
		}
		infos = append(infos, info)
	}
	e.Log.Debug().Int("count", len(infos)).Msg("enumerated devices")
	return infos, nil
}
