//go:build windows

package thread

import "golang.org/x/sys/windows"

// Current returns the Win32 thread id of the calling thread.
func Current() (uint64, error) {
	return uint64(windows.GetCurrentThreadId()), nil
}
