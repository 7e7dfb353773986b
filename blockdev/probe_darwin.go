//go:build darwin

package blockdev

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Candidates scans /dev for diskN (whole disks) and diskNsM (slices). The
// raw rdisk aliases are skipped so each device is listed once.
func (p *systemProber) Candidates() ([]Candidate, error) {
	entries, err := os.ReadDir("/dev")
	if err != nil {
		return nil, errors.Wrap(err, "read /dev")
	}
	out := []Candidate{}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "disk") {
			continue
		}
		path := filepath.Join("/dev", name)
		c := Candidate{Path: path, Name: name, Class: PhysicalDisk, Media: "disk", Target: path}
		// slice if there's an 's' immediately followed by a digit (disk2s1)
		for i := 4; i+1 < len(name); i++ {
			if name[i] == 's' && name[i+1] >= '0' && name[i+1] <= '9' {
				c.Class = Volume
				break
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func (p *systemProber) DeviceNumber(c Candidate) (uint64, error) {
	var st unix.Stat_t
	if err := unix.Stat(c.Target, &st); err != nil {
		return 0, errors.Wrapf(err, "stat %s", c.Target)
	}
	return uint64(st.Rdev), nil
}

func (p *systemProber) Size(c Candidate) (uint64, error) {
	f, err := os.Open(c.Target)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", c.Target)
	}
	defer f.Close()
	size, err := deviceSize(f)
	if err != nil {
		return 0, errors.Wrapf(err, "get size of %s", c.Target)
	}
	return uint64(size), nil
}
