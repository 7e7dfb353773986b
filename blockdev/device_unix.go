//go:build !windows

package blockdev

import (
	"github.com/pkg/errors"
)

type systemDevices struct{}

// System returns the BlockDevice backed by the running OS.
func System() BlockDevice { return systemDevices{} }

// Open rejects PhysicalDriveN/HarddiskVolumeN references, which only name
// devices on Windows. Device nodes are opened with OpenPath.
func (systemDevices) Open(ref Reference) (Handle, error) {
	return nil, errors.Wrapf(ErrUnsupported, "open %s (pass a device path such as /dev/sda)", ref)
}

func (systemDevices) OpenPath(path string) (Handle, error) {
	return openFile(path)
}
