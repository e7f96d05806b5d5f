package vmtest

import (
	jvmattach "github.com/wippyai/jvm-attach"
	"github.com/wippyai/jvm-attach/errors"
	"github.com/wippyai/jvm-attach/vtable"
)

var _ jvmattach.Platform = (*JVM)(nil)

// PointerSize implements jvmattach.Platform.
func (j *JVM) PointerSize() uintptr {
	return pointerSize
}

// CurrentThreadID implements jvmattach.Platform.
func (j *JVM) CurrentThreadID() (jvmattach.ThreadID, error) {
	j.mu.Lock()
	source := j.threadID
	j.mu.Unlock()
	return source()
}

// ReadPointer implements jvmattach.Platform. Unmapped addresses fail.
func (j *JVM) ReadPointer(addr jvmattach.Address) (jvmattach.Address, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	v, ok := j.memory[addr]
	if !ok {
		return 0, errors.OutOfBounds(errors.PhasePlatform, uintptr(addr))
	}
	return v, nil
}

// Alloc implements jvmattach.Platform with zeroed memory.
func (j *JVM) Alloc(size uintptr) (jvmattach.Address, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	addr := j.allocLocked(size)
	j.allocs[addr] = size
	return addr, nil
}

// Free implements jvmattach.Platform. Unknown addresses are ignored.
func (j *JVM) Free(addr jvmattach.Address) {
	j.mu.Lock()
	defer j.mu.Unlock()
	size, ok := j.allocs[addr]
	if !ok {
		return
	}
	delete(j.allocs, addr)
	for off := uintptr(0); off < size || off == 0; off += pointerSize {
		delete(j.memory, addr+jvmattach.Address(off))
	}
}

// Bind implements jvmattach.Platform for the functions of the simulated table.
func (j *JVM) Bind(fn jvmattach.Address, sig jvmattach.Signature) (jvmattach.Func, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	f, ok := j.funcs[fn]
	if !ok {
		return nil, errors.OutOfBounds(errors.PhasePlatform, uintptr(fn))
	}
	if !f.sig.Equal(sig) {
		return nil, errors.SignatureMismatch(errors.PhasePlatform, f.sig.String(), sig.String())
	}
	return &boundFunc{fn: f}, nil
}

type boundFunc struct {
	fn *function
}

func (b *boundFunc) Call(args ...uint64) (uint64, error) {
	if len(args) != len(b.fn.sig.Params) {
		return 0, errors.InvalidInput(errors.PhasePlatform, "argument count does not match signature")
	}
	return uint64(int64(b.fn.impl(args))), nil
}

// enter counts a call by the current thread and applies injected faults and
// failures. It returns the thread id and, when handled is true, the result
// the call must return without running.
func (j *JVM) enter(op string, count func(*Counts)) (tid jvmattach.ThreadID, rc int32, handled bool) {
	j.mu.Lock()
	fault, faulted := j.faults[op]
	delete(j.faults, op)
	source := j.threadID
	j.mu.Unlock()

	if faulted {
		panic(fault)
	}

	tid, err := source()
	if err != nil {
		return 0, errors.JNI_ERR, true
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	c, ok := j.counts[tid]
	if !ok {
		c = &Counts{}
		j.counts[tid] = c
	}
	count(c)

	if code, ok := j.failures[op]; ok {
		delete(j.failures, op)
		return tid, code, true
	}
	return tid, 0, false
}

// writeEnvLocked stores env at penv, which must be mapped.
func (j *JVM) writeEnvLocked(penv, env jvmattach.Address) bool {
	if _, ok := j.memory[penv]; !ok {
		return false
	}
	j.memory[penv] = env
	return true
}

func (j *JVM) attachCurrentThread(args []uint64) int32 {
	tid, rc, handled := j.enter(vtable.OpAttachCurrentThread, func(c *Counts) { c.Attach++ })
	if handled {
		return rc
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if jvmattach.Address(args[0]) != j.handle {
		return errors.JNI_EINVAL
	}
	env, ok := j.attached[tid]
	if !ok {
		env = j.allocLocked(pointerSize)
	}
	if !j.writeEnvLocked(jvmattach.Address(args[1]), env) {
		return errors.JNI_EINVAL
	}
	j.attached[tid] = env
	return errors.JNI_OK
}

func (j *JVM) detachCurrentThread(args []uint64) int32 {
	tid, rc, handled := j.enter(vtable.OpDetachCurrentThread, func(c *Counts) { c.Detach++ })
	if handled {
		return rc
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if jvmattach.Address(args[0]) != j.handle {
		return errors.JNI_EINVAL
	}
	// HotSpot reports success for a thread that is not attached.
	delete(j.attached, tid)
	return errors.JNI_OK
}

func (j *JVM) getEnv(args []uint64) int32 {
	tid, rc, handled := j.enter(vtable.OpGetEnv, func(c *Counts) { c.GetEnv++ })
	if handled {
		return rc
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if jvmattach.Address(args[0]) != j.handle {
		return errors.JNI_EINVAL
	}
	penv := jvmattach.Address(args[1])
	if !j.versions[int32(uint32(args[2]))] {
		j.writeEnvLocked(penv, 0)
		return errors.JNI_EVERSION
	}
	env, ok := j.attached[tid]
	if !ok {
		j.writeEnvLocked(penv, 0)
		return errors.JNI_EDETACHED
	}
	if !j.writeEnvLocked(penv, env) {
		return errors.JNI_EINVAL
	}
	return errors.JNI_OK
}
