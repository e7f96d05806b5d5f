//go:build linux

package thread

import "golang.org/x/sys/unix"

// Current returns the kernel thread id of the calling thread.
func Current() (uint64, error) {
	return uint64(unix.Gettid()), nil
}
