//go:build linux || darwin

package blockdev

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/disk"
)

type systemProber struct {
	mounts    map[string][]string
	mountsErr error
	loaded    bool
}

// SystemProber returns the Prober backed by the running OS.
func SystemProber() Prober { return &systemProber{} }

// MountPoints looks the device up in the mount table, read once per prober.
func (p *systemProber) MountPoints(c Candidate) ([]string, error) {
	if !p.loaded {
		p.mounts, p.mountsErr = loadMounts()
		p.loaded = true
	}
	if p.mountsErr != nil {
		return nil, p.mountsErr
	}
	return p.mounts[c.Path], nil
}

func loadMounts() (map[string][]string, error) {
	parts, err := disk.Partitions(true)
	if err != nil {
		return nil, errors.Wrap(err, "read mount table")
	}
	out := map[string][]string{}
	for _, part := range parts {
		dev := part.Device
		// by-uuid and mapper links resolve to the real node
		if resolved, err := filepath.EvalSymlinks(dev); err == nil {
			dev = resolved
		}
		out[dev] = append(out[dev], part.Mountpoint)
	}
	return out, nil
}
