//go:build !cgo || !(linux || darwin)

package native

import (
	jvmattach "github.com/wippyai/jvm-attach"
)

// Platform is unavailable in this build; every operation fails.
type Platform struct{}

var _ jvmattach.Platform = (*Platform)(nil)

// New returns a platform whose operations return ErrNativeUnavailable.
func New() *Platform {
	return &Platform{}
}

func (p *Platform) PointerSize() uintptr {
	return 0
}

func (p *Platform) CurrentThreadID() (jvmattach.ThreadID, error) {
	return 0, ErrNativeUnavailable
}

func (p *Platform) ReadPointer(jvmattach.Address) (jvmattach.Address, error) {
	return 0, ErrNativeUnavailable
}

func (p *Platform) WritePointer(jvmattach.Address, jvmattach.Address) error {
	return ErrNativeUnavailable
}

func (p *Platform) Alloc(uintptr) (jvmattach.Address, error) {
	return 0, ErrNativeUnavailable
}

func (p *Platform) Free(jvmattach.Address) {}

func (p *Platform) Bind(jvmattach.Address, jvmattach.Signature) (jvmattach.Func, error) {
	return nil, ErrNativeUnavailable
}

// CreatedJavaVM always fails in this build.
func CreatedJavaVM(string) (jvmattach.Address, error) {
	return 0, ErrNativeUnavailable
}

// CreateJavaVM always fails in this build.
func CreateJavaVM(string, int32, []string) (jvmattach.Address, error) {
	return 0, ErrNativeUnavailable
}
