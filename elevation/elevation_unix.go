//go:build !windows

package elevation

import "os"

// IsElevated reports whether the effective user is root.
func IsElevated() (bool, error) {
	return os.Geteuid() == 0, nil
}
