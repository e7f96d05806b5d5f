// Package env wraps a per-thread JNIEnv pointer.
//
// The wrapper does not own the pointer: it is valid only on the OS thread it
// was obtained on and only while that thread stays attached.
package env

import (
	"fmt"

	jvmattach "github.com/wippyai/jvm-attach"
)

// Owner is the attachment manager an Env was obtained from.
type Owner interface {
	Perform(fn func(*Env) error) error
}

// Env is a JNIEnv handle plus a reference back to its owning manager.
type Env struct {
	owner  Owner
	handle jvmattach.Address
}

// New wraps handle. owner is used for nested calls that need attachment.
func New(handle jvmattach.Address, owner Owner) *Env {
	return &Env{handle: handle, owner: owner}
}

// Handle returns the raw JNIEnv pointer.
func (e *Env) Handle() jvmattach.Address {
	return e.handle
}

// Owner returns the manager this environment came from.
func (e *Env) Owner() Owner {
	return e.owner
}

// Perform runs fn through the owning manager. On the thread e belongs to,
// the thread is already attached and fn receives an equivalent Env.
func (e *Env) Perform(fn func(*Env) error) error {
	return e.owner.Perform(fn)
}

func (e *Env) String() string {
	return fmt.Sprintf("JNIEnv(%#x)", uintptr(e.handle))
}
