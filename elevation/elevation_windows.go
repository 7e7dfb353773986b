//go:build windows

package elevation

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// IsElevated reads TokenElevation from the process token.
func IsElevated() (bool, error) {
	var token windows.Token
	if err := windows.OpenProcessToken(windows.CurrentProcess(), windows.TOKEN_QUERY, &token); err != nil {
		return false, errors.Wrap(err, "OpenProcessToken")
	}
	defer token.Close()
	return token.IsElevated(), nil
}
