//go:build windows

package blockdev

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

const (
	ioctlStorageGetDeviceNumber = 0x2D1080
	ioctlDiskGetDriveGeometry   = 0x70000
	ioctlDiskGetLengthInfo      = 0x7405C
)

// maxPhysicalDrives bounds the \\.\PhysicalDriveN probe during enumeration.
const maxPhysicalDrives = 32

type storageDeviceNumber struct {
	DeviceType      uint32
	DeviceNumber    uint32
	PartitionNumber uint32
}

type diskGeometry struct {
	Cylinders         int64
	MediaType         uint32
	TracksPerCylinder uint32
	SectorsPerTrack   uint32
	BytesPerSector    uint32
}

func (g diskGeometry) bytes() uint64 {
	return uint64(g.Cylinders) * uint64(g.TracksPerCylinder) * uint64(g.SectorsPerTrack) * uint64(g.BytesPerSector)
}

type lengthInformation struct {
	Length int64
}

// devicePath maps a reference to the Win32 path CreateFile understands.
func devicePath(ref Reference) (string, error) {
	switch ref.Class {
	case PhysicalDisk:
		return fmt.Sprintf(`\\.\PhysicalDrive%d`, ref.Index), nil
	case Volume:
		return fmt.Sprintf(`\\?\GLOBALROOT\Device\HarddiskVolume%d`, ref.Index), nil
	default:
		return "", errors.Errorf("cannot open %s reference", ref.Class)
	}
}

// openWindowsDevice opens a device read-only, shared with other readers and
// writers so mounted volumes can be imaged.
func openWindowsDevice(path string, access uint32) (windows.Handle, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return windows.InvalidHandle, err
	}
	h, err := windows.CreateFile(
		p,
		access,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		0,
		0,
	)
	if err != nil {
		return windows.InvalidHandle, errors.Wrapf(err, "open %s", path)
	}
	return h, nil
}

func ioctl(h windows.Handle, code uint32, out unsafe.Pointer, size uint32) error {
	var bytesReturned uint32
	return windows.DeviceIoControl(h, code, nil, 0, (*byte)(out), size, &bytesReturned, nil)
}

func queryDeviceNumber(h windows.Handle) (uint64, error) {
	var out storageDeviceNumber
	if err := ioctl(h, ioctlStorageGetDeviceNumber, unsafe.Pointer(&out), uint32(unsafe.Sizeof(out))); err != nil {
		return 0, errors.Wrap(err, "IOCTL_STORAGE_GET_DEVICE_NUMBER")
	}
	return uint64(out.DeviceNumber), nil
}

func queryGeometrySize(h windows.Handle) (uint64, error) {
	var g diskGeometry
	if err := ioctl(h, ioctlDiskGetDriveGeometry, unsafe.Pointer(&g), uint32(unsafe.Sizeof(g))); err != nil {
		return 0, errors.Wrap(err, "IOCTL_DISK_GET_DRIVE_GEOMETRY")
	}
	return g.bytes(), nil
}

func queryLengthInfo(h windows.Handle) (uint64, error) {
	var li lengthInformation
	if err := ioctl(h, ioctlDiskGetLengthInfo, unsafe.Pointer(&li), uint32(unsafe.Sizeof(li))); err != nil {
		return 0, errors.Wrap(err, "IOCTL_DISK_GET_LENGTH_INFO")
	}
	return uint64(li.Length), nil
}

// querySize prefers the exact length and falls back to drive geometry.
func querySize(h windows.Handle) (uint64, error) {
	size, err := queryLengthInfo(h)
	if err == nil {
		return size, nil
	}
	if gsize, gerr := queryGeometrySize(h); gerr == nil {
		return gsize, nil
	}
	return 0, err
}

// deviceSize returns the size of a device handle, or of a regular file when
// the handle does not answer disk IOCTLs.
func deviceSize(f *os.File) (int64, error) {
	if size, err := querySize(windows.Handle(f.Fd())); err == nil {
		return int64(size), nil
	}
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return size, nil
}

type systemDevices struct{}

// System returns the BlockDevice backed by the running OS.
func System() BlockDevice { return systemDevices{} }

func (systemDevices) Open(ref Reference) (Handle, error) {
	path, err := devicePath(ref)
	if err != nil {
		return nil, err
	}
	h, err := openWindowsDevice(path, windows.GENERIC_READ)
	if err != nil {
		return nil, err
	}
	size, err := querySize(h)
	if err != nil {
		windows.CloseHandle(h)
		return nil, errors.Wrapf(err, "get size of %s", path)
	}
	f := os.NewFile(uintptr(h), path)
	if f == nil {
		windows.CloseHandle(h)
		return nil, errors.Errorf("cannot create file from handle for %s", path)
	}
	return newFileHandle(f, size), nil
}

func (systemDevices) OpenPath(path string) (Handle, error) {
	return openFile(path)
}

type systemProber struct{}

// SystemProber returns the Prober backed by the running OS.
func SystemProber() Prober { return systemProber{} }

// Candidates lists \\.\PhysicalDriveN devices that exist followed by every
// volume from FindFirstVolumeW/FindNextVolumeW.
func (systemProber) Candidates() ([]Candidate, error) {
	out := []Candidate{}
	for i := 0; i < maxPhysicalDrives; i++ {
		path := fmt.Sprintf(`\\.\PhysicalDrive%d`, i)
		h, err := openWindowsDevice(path, 0)
		if err != nil {
			if errors.Is(err, windows.ERROR_FILE_NOT_FOUND) || errors.Is(err, windows.ERROR_PATH_NOT_FOUND) {
				continue
			}
		} else {
			windows.CloseHandle(h)
		}
		out = append(out, Candidate{
			Path:   path,
			Name:   fmt.Sprintf("PhysicalDrive%d", i),
			Class:  PhysicalDisk,
			Media:  "disk",
			Target: path,
		})
	}

	vols, err := listVolumeNames()
	if err != nil {
		return nil, err
	}
	for _, guid := range vols {
		// \\?\Volume{...}\ -> Volume{...}
		inner := strings.TrimSuffix(strings.TrimPrefix(guid, `\\?\`), `\`)
		c := Candidate{
			Path:   strings.TrimSuffix(guid, `\`),
			Name:   inner,
			Class:  Volume,
			Media:  driveTypeString(getDriveType(guid)),
			Target: strings.TrimSuffix(guid, `\`),
		}
		if dos, err := queryDosDevice(inner); err == nil {
			// \Device\HarddiskVolume3 -> \\.\HarddiskVolume3, which Parse accepts
			if i := strings.LastIndex(dos, `\`); i >= 0 && strings.HasPrefix(strings.ToLower(dos[i+1:]), HarddiskVolumePrefix) {
				c.Path = `\\.\` + dos[i+1:]
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func (systemProber) DeviceNumber(c Candidate) (uint64, error) {
	h, err := openWindowsDevice(c.Target, 0)
	if err != nil {
		return 0, err
	}
	defer windows.CloseHandle(h)
	return queryDeviceNumber(h)
}

func (systemProber) Size(c Candidate) (uint64, error) {
	if c.Class == PhysicalDisk {
		h, err := openWindowsDevice(c.Target, 0)
		if err != nil {
			return 0, err
		}
		defer windows.CloseHandle(h)
		return queryGeometrySize(h)
	}
	// drive geometry on a volume handle describes the whole disk
	h, err := openWindowsDevice(c.Target, windows.GENERIC_READ)
	if err != nil {
		return 0, err
	}
	defer windows.CloseHandle(h)
	return queryLengthInfo(h)
}

func (systemProber) MountPoints(c Candidate) ([]string, error) {
	if c.Class != Volume {
		return nil, nil
	}
	name, err := windows.UTF16PtrFromString(c.Target + `\`)
	if err != nil {
		return nil, err
	}
	buf := make([]uint16, windows.MAX_PATH)
	for {
		var needed uint32
		err = windows.GetVolumePathNamesForVolumeName(name, &buf[0], uint32(len(buf)), &needed)
		if err == nil {
			break
		}
		if !errors.Is(err, windows.ERROR_MORE_DATA) || needed <= uint32(len(buf)) {
			return nil, errors.Wrap(err, "GetVolumePathNamesForVolumeNameW")
		}
		buf = make([]uint16, needed)
	}
	return splitMultiSz(buf), nil
}

func listVolumeNames() ([]string, error) {
	buf := make([]uint16, windows.MAX_PATH)
	h, err := windows.FindFirstVolume(&buf[0], uint32(len(buf)))
	if err != nil {
		return nil, errors.Wrap(err, "FindFirstVolumeW")
	}
	defer windows.FindVolumeClose(h)

	out := []string{windows.UTF16ToString(buf)}
	for {
		if err := windows.FindNextVolume(h, &buf[0], uint32(len(buf))); err != nil {
			if errors.Is(err, windows.ERROR_NO_MORE_FILES) {
				return out, nil
			}
			return out, errors.Wrap(err, "FindNextVolumeW")
		}
		out = append(out, windows.UTF16ToString(buf))
	}
}

func queryDosDevice(name string) (string, error) {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return "", err
	}
	buf := make([]uint16, windows.MAX_PATH)
	if _, err := windows.QueryDosDevice(p, &buf[0], uint32(len(buf))); err != nil {
		return "", errors.Wrapf(err, "QueryDosDeviceW %s", name)
	}
	return windows.UTF16ToString(buf), nil
}

// splitMultiSz splits a double NUL terminated UTF-16 string list.
func splitMultiSz(buf []uint16) []string {
	var out []string
	start := 0
	for i, c := range buf {
		if c != 0 {
			continue
		}
		if i == start {
			break
		}
		out = append(out, windows.UTF16ToString(buf[start:i]))
		start = i + 1
	}
	return out
}

func getDriveType(root string) uint32 {
	p, err := windows.UTF16PtrFromString(root)
	if err != nil {
		return windows.DRIVE_UNKNOWN
	}
	return windows.GetDriveType(p)
}

func driveTypeString(t uint32) string {
	switch t {
	case windows.DRIVE_REMOVABLE:
		return "removable"
	case windows.DRIVE_FIXED:
		return "fixed"
	case windows.DRIVE_REMOTE:
		return "network"
	case windows.DRIVE_CDROM:
		return "cdrom"
	case windows.DRIVE_RAMDISK:
		return "ramdisk"
	default:
		return "unknown"
	}
}
