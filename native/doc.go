// Package native implements jvmattach.Platform for a real JVM in the current
// process, and loads that JVM from libjvm.
//
// Foreign calls go through small C trampolines, one per supported function
// shape; Bind rejects any other signature. Pointer reads and writes run with
// debug.SetPanicOnFault so a bad address is returned as a fault error. A
// fault raised inside C code, including inside the JVM, cannot be recovered
// by the Go runtime and still terminates the process.
//
// HotSpot installs its own signal handlers. Start it with -Xrs, or make sure
// GODEBUG and the JVM agree on signal chaining, when both runtimes share a
// process.
//
// Requires cgo on linux or darwin; elsewhere every operation returns
// ErrNativeUnavailable.
package native

import "errors"

// ErrNativeUnavailable is returned when the package was built without cgo or
// for an unsupported platform.
var ErrNativeUnavailable = errors.New("native: requires cgo on linux or darwin")
