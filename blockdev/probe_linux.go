//go:build linux

package blockdev

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

var sysClassBlock = "/sys/class/block"

// Candidates walks /sys/class/block. Entries with a partition attribute are
// volumes, the rest are whole disks.
func (p *systemProber) Candidates() ([]Candidate, error) {
	entries, err := os.ReadDir(sysClassBlock)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", sysClassBlock)
	}
	out := []Candidate{}
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "ram") {
			continue
		}
		dir := filepath.Join(sysClassBlock, name)
		c := Candidate{
			Path:   filepath.Join("/dev", name),
			Name:   name,
			Class:  PhysicalDisk,
			Media:  "fixed",
			Target: dir,
		}
		removable := filepath.Join(dir, "removable")
		if _, err := os.Stat(filepath.Join(dir, "partition")); err == nil {
			c.Class = Volume
			// a partition's removable flag lives on its parent disk
			removable = ""
			if real, err := filepath.EvalSymlinks(dir); err == nil {
				removable = filepath.Join(filepath.Dir(real), "removable")
			}
		}
		if b, err := os.ReadFile(removable); err == nil && strings.TrimSpace(string(b)) == "1" {
			c.Media = "removable"
		}
		if strings.HasPrefix(name, "loop") {
			c.Media = "loop"
		}
		out = append(out, c)
	}
	return out, nil
}

// DeviceNumber reads the major:minor pair from sysfs and packs it as dev_t.
func (p *systemProber) DeviceNumber(c Candidate) (uint64, error) {
	b, err := os.ReadFile(filepath.Join(c.Target, "dev"))
	if err != nil {
		return 0, errors.Wrapf(err, "read device number of %s", c.Name)
	}
	majStr, minStr, ok := strings.Cut(strings.TrimSpace(string(b)), ":")
	if !ok {
		return 0, errors.Errorf("malformed device number %q for %s", strings.TrimSpace(string(b)), c.Name)
	}
	major, err := strconv.ParseUint(majStr, 10, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "parse major of %s", c.Name)
	}
	minor, err := strconv.ParseUint(minStr, 10, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "parse minor of %s", c.Name)
	}
	return unix.Mkdev(uint32(major), uint32(minor)), nil
}

// Size reads the capacity sysfs reports in 512-byte units.
func (p *systemProber) Size(c Candidate) (uint64, error) {
	b, err := os.ReadFile(filepath.Join(c.Target, "size"))
	if err != nil {
		return 0, errors.Wrapf(err, "read size of %s", c.Name)
	}
	sectors, err := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse size of %s", c.Name)
	}
	return sectors * 512, nil
}
