//go:build cgo && (linux || darwin)

package native

/*
#include <stdint.h>
#include <stdlib.h>

typedef int32_t (*jvma_ppp_fn)(void*, void*, void*);
typedef int32_t (*jvma_p_fn)(void*);
typedef int32_t (*jvma_ppi_fn)(void*, void*, int32_t);

static int32_t jvma_call_ppp(uintptr_t fn, uintptr_t a, uintptr_t b, uintptr_t c) {
	return ((jvma_ppp_fn)fn)((void*)a, (void*)b, (void*)c);
}

static int32_t jvma_call_p(uintptr_t fn, uintptr_t a) {
	return ((jvma_p_fn)fn)((void*)a);
}

static int32_t jvma_call_ppi(uintptr_t fn, uintptr_t a, uintptr_t b, int32_t c) {
	return ((jvma_ppi_fn)fn)((void*)a, (void*)b, c);
}

static uintptr_t jvma_calloc(size_t n) {
	return (uintptr_t)calloc(1, n);
}

static void jvma_free(uintptr_t p) {
	free((void*)p);
}
*/
import "C"

import (
	"runtime/debug"
	"unsafe"

	jvmattach "github.com/wippyai/jvm-attach"
	"github.com/wippyai/jvm-attach/errors"
	"github.com/wippyai/jvm-attach/internal/thread"
)

// shape selects the C trampoline for a bound function; every shape returns int32.
type shape int

const (
	shapePtr3 shape = iota + 1
	shapePtr
	shapePtr2I32
)

var shapes = []struct {
	sig   jvmattach.Signature
	shape shape
}{
	{jvmattach.Signature{Params: []jvmattach.ValueType{jvmattach.ValueTypePointer, jvmattach.ValueTypePointer, jvmattach.ValueTypePointer}, Result: jvmattach.ValueTypeInt32}, shapePtr3},
	{jvmattach.Signature{Params: []jvmattach.ValueType{jvmattach.ValueTypePointer}, Result: jvmattach.ValueTypeInt32}, shapePtr},
	{jvmattach.Signature{Params: []jvmattach.ValueType{jvmattach.ValueTypePointer, jvmattach.ValueTypePointer, jvmattach.ValueTypeInt32}, Result: jvmattach.ValueTypeInt32}, shapePtr2I32},
}

// Platform is the in-process foreign-call facility.
type Platform struct{}

var _ jvmattach.Platform = (*Platform)(nil)

// New returns the platform for the current process.
func New() *Platform {
	return &Platform{}
}

// PointerSize implements jvmattach.Platform.
func (p *Platform) PointerSize() uintptr {
	return unsafe.Sizeof(uintptr(0))
}

// CurrentThreadID implements jvmattach.Platform.
func (p *Platform) CurrentThreadID() (jvmattach.ThreadID, error) {
	tid, err := thread.Current()
	if err != nil {
		return 0, errors.Wrap(errors.PhasePlatform, errors.KindUnsupported, err, "current thread id")
	}
	return jvmattach.ThreadID(tid), nil
}

// ReadPointer implements jvmattach.Platform.
func (p *Platform) ReadPointer(addr jvmattach.Address) (v jvmattach.Address, err error) {
	if addr == 0 {
		return 0, errors.NilPointer(errors.PhasePlatform, "read address")
	}

	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer func() {
		if r := recover(); r != nil {
			v, err = 0, errors.Fault(errors.PhasePlatform, "ReadPointer", r)
		}
	}()

	return jvmattach.Address(*(*uintptr)(unsafe.Pointer(uintptr(addr)))), nil
}

// WritePointer stores value at addr.
func (p *Platform) WritePointer(addr, value jvmattach.Address) (err error) {
	if addr == 0 {
		return errors.NilPointer(errors.PhasePlatform, "write address")
	}

	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer func() {
		if r := recover(); r != nil {
			err = errors.Fault(errors.PhasePlatform, "WritePointer", r)
		}
	}()

	*(*uintptr)(unsafe.Pointer(uintptr(addr))) = uintptr(value)
	return nil
}

// Alloc implements jvmattach.Platform with zeroed C heap memory.
func (p *Platform) Alloc(size uintptr) (jvmattach.Address, error) {
	addr := C.jvma_calloc(C.size_t(size))
	if addr == 0 {
		return 0, errors.AllocationFailed(errors.PhasePlatform, size)
	}
	return jvmattach.Address(addr), nil
}

// Free implements jvmattach.Platform.
func (p *Platform) Free(addr jvmattach.Address) {
	if addr != 0 {
		C.jvma_free(C.uintptr_t(addr))
	}
}

// Bind implements jvmattach.Platform. Only the C calling convention and the
// three invocation-interface shapes are supported.
func (p *Platform) Bind(fn jvmattach.Address, sig jvmattach.Signature) (jvmattach.Func, error) {
	if fn == 0 {
		return nil, errors.NilPointer(errors.PhasePlatform, "function address")
	}
	if sig.Conv != jvmattach.CallConvDefault {
		return nil, errors.Unsupported(errors.PhasePlatform, "calling convention of "+sig.String())
	}
	for _, s := range shapes {
		if s.sig.Equal(sig) {
			return &foreignFunc{fn: fn, shape: s.shape, arity: len(sig.Params)}, nil
		}
	}
	return nil, errors.Unsupported(errors.PhasePlatform, "no trampoline for "+sig.String())
}

type foreignFunc struct {
	fn    jvmattach.Address
	shape shape
	arity int
}

func (f *foreignFunc) Call(args ...uint64) (uint64, error) {
	if len(args) != f.arity {
		return 0, errors.InvalidInput(errors.PhasePlatform, "argument count does not match signature")
	}

	fn := C.uintptr_t(f.fn)
	var rc C.int32_t
	switch f.shape {
	case shapePtr3:
		rc = C.jvma_call_ppp(fn, C.uintptr_t(args[0]), C.uintptr_t(args[1]), C.uintptr_t(args[2]))
	case shapePtr:
		rc = C.jvma_call_p(fn, C.uintptr_t(args[0]))
	case shapePtr2I32:
		rc = C.jvma_call_ppi(fn, C.uintptr_t(args[0]), C.uintptr_t(args[1]), C.int32_t(int32(args[2])))
	}
	return uint64(int64(int32(rc))), nil
}
