// Package elevation reports whether the process may open raw devices.
package elevation

// Checker reports whether the current process runs with administrative
// rights. IsElevated is the OS implementation.
type Checker func() (bool, error)
