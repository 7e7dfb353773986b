// Package blockdev resolves, enumerates and opens raw block devices
// (physical disks and volumes) for imaging.
package blockdev

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Lower-case tokens recognised in user supplied device references.
const (
	PhysicalDrivePrefix  = "physicaldrive"
	HarddiskVolumePrefix = "harddiskvolume"
)

// Class is the kind of block object a reference or record points at.
type Class int

// Device classes
const (
	Unknown Class = iota
	PhysicalDisk
	Volume
)

func (c Class) String() string {
	switch c {
	case PhysicalDisk:
		return "physical disk"
	case Volume:
		return "volume"
	default:
		return "unknown"
	}
}

// Reference addresses a physical disk or a volume by its index in that
// class's namespace. Only Parse produces valid references.
type Reference struct {
	Class Class
	Index uint8
}

// String renders the canonical Windows device path for the reference.
func (r Reference) String() string {
	switch r.Class {
	case PhysicalDisk:
		return fmt.Sprintf(`\\.\PhysicalDrive%d`, r.Index)
	case Volume:
		return fmt.Sprintf(`\\.\HarddiskVolume%d`, r.Index)
	default:
		return fmt.Sprintf("unknown(%d)", r.Index)
	}
}

var (
	// ErrInvalidReference matches every error returned by Parse.
	ErrInvalidReference = errors.New("invalid device reference")
	// ErrUnknownPrefix means neither device prefix occurs in the input.
	ErrUnknownPrefix = errors.New("no physicaldrive or harddiskvolume prefix")
	// ErrBadSuffix means the text after the prefix is empty or not all digits.
	ErrBadSuffix = errors.New("device index must be decimal digits")
)

// InvalidReferenceError describes why a device reference was rejected.
// Reason is ErrUnknownPrefix, ErrBadSuffix or a *strconv.NumError when the
// index does not fit in 8 bits.
type InvalidReferenceError struct {
	Input  string
	Reason error
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("invalid device reference %q: %v", e.Input, e.Reason)
}

func (e *InvalidReferenceError) Unwrap() error { return e.Reason }

// Is reports true for ErrInvalidReference so callers need not care about
// the specific reason.
func (e *InvalidReferenceError) Is(target error) bool {
	return target == ErrInvalidReference
}

// Parse turns a string such as "PhysicalDrive0", `\\.\PhysicalDrive0` or
// "harddiskvolume3" into a Reference. Matching is case-insensitive and the
// index is taken from the text after the last occurrence of the prefix.
func Parse(s string) (Reference, error) {
	lower := strings.ToLower(s)
	for _, p := range []struct {
		prefix string
		class  Class
	}{
		{PhysicalDrivePrefix, PhysicalDisk},
		{HarddiskVolumePrefix, Volume},
	} {
		i := strings.LastIndex(lower, p.prefix)
		if i < 0 {
			continue
		}
		idx, err := parseIndex(lower[i+len(p.prefix):])
		if err != nil {
			return Reference{}, &InvalidReferenceError{Input: s, Reason: err}
		}
		return Reference{Class: p.class, Index: idx}, nil
	}
	return Reference{}, &InvalidReferenceError{Input: s, Reason: ErrUnknownPrefix}
}

func parseIndex(suffix string) (uint8, error) {
	if suffix == "" {
		return 0, ErrBadSuffix
	}
	for i := 0; i < len(suffix); i++ {
		if suffix[i] < '0' || suffix[i] > '9' {
			return 0, ErrBadSuffix
		}
	}
	v, err := strconv.ParseUint(suffix, 10, 8)
	if err != nil {
		return 0, err
	}
	return uint8(v), nil
}
