package blockdev

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ErrClassMismatch is the physical-disk attempt's error for a volume reference.
var ErrClassMismatch = errors.New("reference is not a physical disk")

// OpenError is returned when neither the physical-disk nor the volume open
// succeeded. Volume is the primary error; Physical is kept for diagnostics.
type OpenError struct {
	Ref      Reference
	Physical error
	Volume   error
}

func (e *OpenError) Error() string {
	msg := fmt.Sprintf("open device %d as volume: %v", e.Ref.Index, e.Volume)
	if e.Physical != nil && !errors.Is(e.Physical, ErrClassMismatch) {
		msg += fmt.Sprintf(" (as physical disk: %v)", e.Physical)
	}
	return msg
}

func (e *OpenError) Unwrap() error { return e.Volume }

// Opener resolves user input to an open device.
type Opener struct {
	Devices BlockDevice
	Log     zerolog.Logger
}

// NewOpener returns an Opener over the running OS.
func NewOpener(log zerolog.Logger) *Opener {
	return &Opener{Devices: System(), Log: log}
}

// Open tries the reference's index as a physical disk, then as a volume.
// A volume reference skips the physical attempt. The size returned is the
// one reported by whichever attempt succeeded.
func (o *Opener) Open(ref Reference) (*OpenDevice, error) {
	var physErr error
	if ref.Class == PhysicalDisk {
		h, err := o.Devices.Open(ref)
		if err == nil {
			return o.opened(ref.String(), h), nil
		}
		physErr = err
		o.Log.Debug().Err(err).Uint8("index", ref.Index).Msg("physical disk open failed, trying volume")
	} else {
		physErr = ErrClassMismatch
	}

	vol := Reference{Class: Volume, Index: ref.Index}
	h, err := o.Devices.Open(vol)
	if err != nil {
		return nil, &OpenError{Ref: ref, Physical: physErr, Volume: err}
	}
	return o.opened(vol.String(), h), nil
}

// OpenInput parses s as a device reference and opens it. Input without a
// recognised prefix is opened as a device or file path.
func (o *Opener) OpenInput(s string) (*OpenDevice, error) {
	ref, err := Parse(s)
	if err == nil {
		return o.Open(ref)
	}
	if !errors.Is(err, ErrUnknownPrefix) {
		return nil, err
	}
	h, perr := o.Devices.OpenPath(s)
	if perr != nil {
		return nil, perr
	}
	return o.opened(s, h), nil
}

func (o *Opener) opened(name string, h Handle) *OpenDevice {
	o.Log.Debug().Str("device", name).Uint64("size", h.Size()).Msg("opened device")
	return &OpenDevice{Name: name, Size: h.Size(), h: h}
}
