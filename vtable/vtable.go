package vtable

import (
	"go.uber.org/zap"

	jvmattach "github.com/wippyai/jvm-attach"
	"github.com/wippyai/jvm-attach/errors"
)

// Slot indexes in the JNIInvokeInterface function table. Slots 0-2 are
// reserved and 3 is DestroyJavaVM.
const (
	SlotAttachCurrentThread = 4
	SlotDetachCurrentThread = 5
	SlotGetEnv              = 6
)

// Operation names carried by errors raised from the bound calls.
const (
	OpAttachCurrentThread = "AttachCurrentThread"
	OpDetachCurrentThread = "DetachCurrentThread"
	OpGetEnv              = "VM::GetEnv"
)

var (
	// AttachCurrentThreadSig is jint (JavaVM*, void** penv, void* args).
	AttachCurrentThreadSig = jvmattach.Signature{
		Params: []jvmattach.ValueType{jvmattach.ValueTypePointer, jvmattach.ValueTypePointer, jvmattach.ValueTypePointer},
		Result: jvmattach.ValueTypeInt32,
	}

	// DetachCurrentThreadSig is jint (JavaVM*).
	DetachCurrentThreadSig = jvmattach.Signature{
		Params: []jvmattach.ValueType{jvmattach.ValueTypePointer},
		Result: jvmattach.ValueTypeInt32,
	}

	// GetEnvSig is jint (JavaVM*, void** penv, jint version).
	GetEnvSig = jvmattach.Signature{
		Params: []jvmattach.ValueType{jvmattach.ValueTypePointer, jvmattach.ValueTypePointer, jvmattach.ValueTypeInt32},
		Result: jvmattach.ValueTypeInt32,
	}
)

// Table holds the three invocation-interface calls bound once from a VM handle.
// It is immutable and safe for concurrent use.
type Table struct {
	attach boundCall
	detach boundCall
	getEnv boundCall
	vm     jvmattach.Address
	base   jvmattach.Address
}

type boundCall struct {
	fn    jvmattach.Func
	name  string
	phase errors.Phase
}

// Resolve reads the function table behind vm and binds AttachCurrentThread,
// DetachCurrentThread and GetEnv. The table contents are trusted beyond
// rejecting null pointers.
func Resolve(p jvmattach.Platform, vm jvmattach.Address) (*Table, error) {
	if p == nil {
		return nil, errors.InvalidInput(errors.PhaseResolve, "platform is nil")
	}
	if vm == 0 {
		return nil, errors.NilPointer(errors.PhaseResolve, "VM handle")
	}

	base, err := p.ReadPointer(vm)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseResolve, errors.KindOutOfBounds, err, "read invoke interface pointer")
	}
	if base == 0 {
		return nil, errors.NilPointer(errors.PhaseResolve, "invoke interface table")
	}

	t := &Table{vm: vm, base: base}

	if t.attach, err = bindSlot(p, base, SlotAttachCurrentThread, OpAttachCurrentThread, errors.PhaseAttach, AttachCurrentThreadSig); err != nil {
		return nil, err
	}
	if t.detach, err = bindSlot(p, base, SlotDetachCurrentThread, OpDetachCurrentThread, errors.PhaseDetach, DetachCurrentThreadSig); err != nil {
		return nil, err
	}
	if t.getEnv, err = bindSlot(p, base, SlotGetEnv, OpGetEnv, errors.PhaseEnv, GetEnvSig); err != nil {
		return nil, err
	}

	Logger().Debug("resolved invoke interface",
		zap.Uintptr("vm", uintptr(vm)),
		zap.Uintptr("table", uintptr(base)),
		zap.Uintptr("pointer_size", p.PointerSize()),
	)

	return t, nil
}

func bindSlot(p jvmattach.Platform, base jvmattach.Address, slot int, name string, phase errors.Phase, sig jvmattach.Signature) (boundCall, error) {
	addr, err := p.ReadPointer(base + jvmattach.Address(slot)*jvmattach.Address(p.PointerSize()))
	if err != nil {
		return boundCall{}, errors.New(errors.PhaseResolve, errors.KindOutOfBounds).
			Operation(name).
			Cause(err).
			Detail("read slot %d", slot).
			Build()
	}
	if addr == 0 {
		return boundCall{}, errors.New(errors.PhaseResolve, errors.KindNilPointer).
			Operation(name).
			Detail("slot %d is empty", slot).
			Build()
	}

	fn, err := p.Bind(addr, sig)
	if err != nil {
		return boundCall{}, errors.New(errors.PhaseResolve, errors.KindUnsupported).
			Operation(name).
			Cause(err).
			Detail("bind slot %d as %s", slot, sig).
			Build()
	}

	return boundCall{fn: fn, name: name, phase: phase}, nil
}

// invoke runs the bound call. A panic raised by the platform while the
// native call is in flight is returned as a fault error.
func (c boundCall) invoke(args ...uint64) (rc int32, err error) {
	defer func() {
		if r := recover(); r != nil {
			rc = 0
			err = errors.Fault(c.phase, c.name, r)
		}
	}()

	ret, err := c.fn.Call(args...)
	if err != nil {
		return 0, err
	}
	return int32(uint32(ret)), nil
}

// VM returns the VM handle the table was resolved from.
func (t *Table) VM() jvmattach.Address {
	return t.vm
}

// Base returns the address of the invoke interface function table.
func (t *Table) Base() jvmattach.Address {
	return t.base
}

// AttachCurrentThread calls AttachCurrentThread(vm, penv, args) and returns
// the raw JNI result.
func (t *Table) AttachCurrentThread(penv, args jvmattach.Address) (int32, error) {
	return t.attach.invoke(uint64(t.vm), uint64(penv), uint64(args))
}

// DetachCurrentThread calls DetachCurrentThread(vm) and returns the raw JNI result.
func (t *Table) DetachCurrentThread() (int32, error) {
	return t.detach.invoke(uint64(t.vm))
}

// GetEnv calls GetEnv(vm, penv, version) and returns the raw JNI result.
func (t *Table) GetEnv(penv jvmattach.Address, version int32) (int32, error) {
	return t.getEnv.invoke(uint64(t.vm), uint64(penv), uint64(int64(version)))
}
