package jvmattach

import (
	"fmt"
	"strings"
)

// Address is a raw native address in the host process.
type Address uintptr

// ThreadID identifies a native OS thread.
type ThreadID uint64

// ValueType is the native type of a foreign call argument or result.
type ValueType uint8

const (
	ValueTypeInt32 ValueType = iota + 1
	ValueTypePointer
)

func (t ValueType) String() string {
	switch t {
	case ValueTypeInt32:
		return "int32"
	case ValueTypePointer:
		return "pointer"
	default:
		return fmt.Sprintf("ValueType(%d)", uint8(t))
	}
}

// CallConv is the calling convention of a foreign function.
type CallConv uint8

const (
	// CallConvDefault is the platform C convention (JNICALL everywhere but 32-bit Windows).
	CallConvDefault CallConv = iota
	// CallConvStdcall is JNICALL on 32-bit Windows.
	CallConvStdcall
)

// Signature describes the shape of a foreign function. The calling convention
// is part of its identity: two signatures with the same types but different
// conventions are not interchangeable.
type Signature struct {
	Params []ValueType
	Result ValueType
	Conv   CallConv
}

// Equal reports whether s and o describe the same native function type.
func (s Signature) Equal(o Signature) bool {
	if s.Result != o.Result || s.Conv != o.Conv || len(s.Params) != len(o.Params) {
		return false
	}
	for i := range s.Params {
		if s.Params[i] != o.Params[i] {
			return false
		}
	}
	return true
}

func (s Signature) String() string {
	params := make([]string, len(s.Params))
	for i, p := range s.Params {
		params[i] = p.String()
	}
	conv := ""
	if s.Conv == CallConvStdcall {
		conv = "stdcall "
	}
	return conv + "(" + strings.Join(params, ", ") + ") -> " + s.Result.String()
}

// Func is a foreign function bound to an address and a signature.
// Arguments and the result travel as raw 64-bit words; int32 values are
// sign-extended into them.
type Func interface {
	Call(args ...uint64) (uint64, error)
}

// Memory reads native memory
type Memory interface {
	ReadPointer(addr Address) (Address, error)
}

// Allocator allocates scratch native memory
type Allocator interface {
	Alloc(size uintptr) (Address, error)
	Free(addr Address)
}

// Binder turns a function address into a callable Func.
type Binder interface {
	Bind(fn Address, sig Signature) (Func, error)
}

// Platform is the foreign-call facility the attachment core runs on.
type Platform interface {
	Memory
	Allocator
	Binder

	// PointerSize is the width of a native pointer in bytes.
	PointerSize() uintptr

	// CurrentThreadID returns the id of the OS thread the caller runs on.
	// Callers that need a stable answer must pin the goroutine first.
	CurrentThreadID() (ThreadID, error)
}
