//go:build !linux && !windows && !(darwin && cgo)

package thread

// Current always fails; see ErrUnsupported.
func Current() (uint64, error) {
	return 0, ErrUnsupported
}
