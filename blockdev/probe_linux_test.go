//go:build linux

package blockdev

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// fakeSysfs lays out /sys/devices style directories and /sys/class/block
// symlinks pointing into them.
func fakeSysfs(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	class := filepath.Join(root, "class")
	require.NoError(t, os.MkdirAll(class, 0o755))

	dev := func(rel string, attrs map[string]string) {
		dir := filepath.Join(root, "devices", rel)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		for k, v := range attrs {
			require.NoError(t, writeFile(filepath.Join(dir, k), []byte(v+"\n")))
		}
		require.NoError(t, os.Symlink(dir, filepath.Join(class, filepath.Base(rel))))
	}
	dev("loop0", map[string]string{"removable": "0", "dev": "7:0", "size": "0"})
	dev("ram0", map[string]string{"removable": "0", "dev": "1:0", "size": "8192"})
	dev("sda", map[string]string{"removable": "0", "dev": "8:0", "size": "2048"})
	dev("sda/sda1", map[string]string{"partition": "1", "dev": "8:1", "size": "1024"})
	dev("sdb", map[string]string{"removable": "1", "dev": "8:16", "size": "4096"})
	dev("sdb/sdb1", map[string]string{"partition": "1", "dev": "8:17", "size": "2048"})

	old := sysClassBlock
	sysClassBlock = class
	t.Cleanup(func() { sysClassBlock = old })
	return root
}

func TestLinuxCandidates(t *testing.T) {
	fakeSysfs(t)
	p := &systemProber{}

	cands, err := p.Candidates()
	require.NoError(t, err)

	got := map[string]Candidate{}
	var names []string
	for _, c := range cands {
		got[c.Name] = c
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"loop0", "sda", "sda1", "sdb", "sdb1"}, names)

	assert.Equal(t, "loop", got["loop0"].Media)
	assert.Equal(t, PhysicalDisk, got["sda"].Class)
	assert.Equal(t, "fixed", got["sda"].Media)
	assert.Equal(t, Volume, got["sda1"].Class)
	assert.Equal(t, "fixed", got["sda1"].Media)
	assert.Equal(t, "removable", got["sdb"].Media)
	assert.Equal(t, Volume, got["sdb1"].Class)
	assert.Equal(t, "removable", got["sdb1"].Media)
	assert.Equal(t, "/dev/sdb1", got["sdb1"].Path)
}

func TestLinuxDeviceNumberAndSize(t *testing.T) {
	fakeSysfs(t)
	p := &systemProber{}

	cands, err := p.Candidates()
	require.NoError(t, err)
	var sdb1 Candidate
	for _, c := range cands {
		if c.Name == "sdb1" {
			sdb1 = c
		}
	}

	n, err := p.DeviceNumber(sdb1)
	require.NoError(t, err)
	assert.Equal(t, unix.Mkdev(8, 17), n)

	size, err := p.Size(sdb1)
	require.NoError(t, err)
	assert.Equal(t, uint64(2048*512), size)
}

func TestLinuxDeviceNumberMalformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeFile(filepath.Join(dir, "dev"), []byte("garbage\n")))

	_, err := (&systemProber{}).DeviceNumber(Candidate{Name: "x", Target: dir})
	assert.Error(t, err)
}
