// Package thread reports the identity of the OS thread the caller runs on.
//
// Goroutines migrate between threads; pin with runtime.LockOSThread before
// relying on the returned id.
package thread

import "errors"

// ErrUnsupported is returned on platforms without a thread id source.
var ErrUnsupported = errors.New("thread: current thread id is not available on this platform")
