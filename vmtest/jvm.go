// Package vmtest provides an in-process simulated Java VM for testing code
// built on the attachment manager.
//
// JVM implements jvmattach.Platform: it owns a small simulated address space
// holding a JavaVM control block, its invocation interface table and the
// scratch memory callers allocate. AttachCurrentThread, DetachCurrentThread
// and GetEnv behave like HotSpot's, keyed by the real OS thread id of the
// caller, and every call is counted per thread.
//
//	jvm := vmtest.New()
//	machine, _ := vm.New(jvm, jvm.Handle())
//
//	jvm.FailNext(vtable.OpAttachCurrentThread, errors.JNI_ENOMEM)
//	err := machine.Perform(func(*env.Env) error { return nil })
//
// A goroutine that calls runtime.LockOSThread and never unlocks stands in for
// one native thread; see OnThread.
package vmtest

import (
	"sync"
	"unsafe"

	jvmattach "github.com/wippyai/jvm-attach"
	"github.com/wippyai/jvm-attach/errors"
	"github.com/wippyai/jvm-attach/internal/thread"
	"github.com/wippyai/jvm-attach/vtable"
)

const (
	pointerSize = unsafe.Sizeof(uintptr(0))
	tableSlots  = 8
	baseAddress = jvmattach.Address(0x10000)
)

// Counts records invocation-interface calls made by one thread, or by all.
type Counts struct {
	Attach int
	Detach int
	GetEnv int
}

type function struct {
	impl func(args []uint64) int32
	sig  jvmattach.Signature
}

// JVM is a simulated Java VM. It is safe for concurrent use.
type JVM struct {
	memory   map[jvmattach.Address]jvmattach.Address
	allocs   map[jvmattach.Address]uintptr
	funcs    map[jvmattach.Address]*function
	attached map[jvmattach.ThreadID]jvmattach.Address
	counts   map[jvmattach.ThreadID]*Counts
	failures map[string]int32
	faults   map[string]any
	threadID func() (jvmattach.ThreadID, error)
	versions map[int32]bool
	next     jvmattach.Address
	handle   jvmattach.Address
	table    jvmattach.Address
	mu       sync.Mutex
}

// New creates a simulated VM with its invocation interface in place.
func New() *JVM {
	j := &JVM{
		memory:   make(map[jvmattach.Address]jvmattach.Address),
		allocs:   make(map[jvmattach.Address]uintptr),
		funcs:    make(map[jvmattach.Address]*function),
		attached: make(map[jvmattach.ThreadID]jvmattach.Address),
		counts:   make(map[jvmattach.ThreadID]*Counts),
		failures: make(map[string]int32),
		faults:   make(map[string]any),
		threadID: currentThread,
		versions: make(map[int32]bool),
		next:     baseAddress,
	}

	for _, v := range []int32{0x00010001, 0x00010002, 0x00010004, 0x00010006, 0x00010008, 0x00090000, 0x000a0000, 0x00130000, 0x00140000, 0x00150000} {
		j.versions[v] = true
	}

	j.handle = j.allocLocked(pointerSize)
	j.table = j.allocLocked(tableSlots * pointerSize)
	j.memory[j.handle] = j.table

	// Slots 0-2 are reserved and stay null, as in a real JNIInvokeInterface.
	j.setSlotLocked(3, j.registerLocked(vtable.DetachCurrentThreadSig, func([]uint64) int32 { return errors.JNI_ERR }))
	j.setSlotLocked(vtable.SlotAttachCurrentThread, j.registerLocked(vtable.AttachCurrentThreadSig, j.attachCurrentThread))
	j.setSlotLocked(vtable.SlotDetachCurrentThread, j.registerLocked(vtable.DetachCurrentThreadSig, j.detachCurrentThread))
	j.setSlotLocked(vtable.SlotGetEnv, j.registerLocked(vtable.GetEnvSig, j.getEnv))
	j.setSlotLocked(7, j.registerLocked(vtable.AttachCurrentThreadSig, j.attachCurrentThread))

	return j
}

func currentThread() (jvmattach.ThreadID, error) {
	tid, err := thread.Current()
	return jvmattach.ThreadID(tid), err
}

// Handle returns the simulated JavaVM*.
func (j *JVM) Handle() jvmattach.Address {
	return j.handle
}

// Table returns the address of the simulated invocation interface table.
func (j *JVM) Table() jvmattach.Address {
	return j.table
}

// SetSlot overwrites an entry of the invocation interface table.
func (j *JVM) SetSlot(slot int, fn jvmattach.Address) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.setSlotLocked(slot, fn)
}

// WritePointer stores a pointer-sized value at addr, mapping it if needed.
func (j *JVM) WritePointer(addr, value jvmattach.Address) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.memory[addr] = value
}

// SetThreadIDSource replaces the source of thread ids reported to callers.
func (j *JVM) SetThreadIDSource(fn func() (jvmattach.ThreadID, error)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.threadID = fn
}

// SetSupportedVersions replaces the JNI versions GetEnv accepts.
func (j *JVM) SetSupportedVersions(versions ...int32) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.versions = make(map[int32]bool, len(versions))
	for _, v := range versions {
		j.versions[v] = true
	}
}

// FailNext makes the next call to op return code instead of running.
// op is one of the vtable.Op* names.
func (j *JVM) FailNext(op string, code int32) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.failures[op] = code
}

// FaultNext makes the next call to op panic with v, the way a native fault
// surfaces through the platform.
func (j *JVM) FaultNext(op string, v any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.faults[op] = v
}

// AttachThread attaches tid directly, the way a host that owns the thread would.
func (j *JVM) AttachThread(tid jvmattach.ThreadID) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.attached[tid]; !ok {
		j.attached[tid] = j.allocLocked(pointerSize)
	}
}

// DetachThread drops tid's attachment without going through the table.
func (j *JVM) DetachThread(tid jvmattach.ThreadID) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.attached, tid)
}

// IsAttached reports whether tid is attached.
func (j *JVM) IsAttached(tid jvmattach.ThreadID) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.attached[tid]
	return ok
}

// EnvOf returns tid's JNIEnv*, or 0 when it is not attached.
func (j *JVM) EnvOf(tid jvmattach.ThreadID) jvmattach.Address {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.attached[tid]
}

// AttachedCount returns the number of attached threads.
func (j *JVM) AttachedCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.attached)
}

// CountsFor returns the calls made by tid.
func (j *JVM) CountsFor(tid jvmattach.ThreadID) Counts {
	j.mu.Lock()
	defer j.mu.Unlock()
	if c, ok := j.counts[tid]; ok {
		return *c
	}
	return Counts{}
}

// Totals returns the calls made by all threads.
func (j *JVM) Totals() Counts {
	j.mu.Lock()
	defer j.mu.Unlock()
	var total Counts
	for _, c := range j.counts {
		total.Attach += c.Attach
		total.Detach += c.Detach
		total.GetEnv += c.GetEnv
	}
	return total
}

// LiveAllocations returns the number of scratch blocks not yet freed.
func (j *JVM) LiveAllocations() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.allocs)
}

func (j *JVM) allocLocked(size uintptr) jvmattach.Address {
	cells := (size + pointerSize - 1) / pointerSize
	if cells == 0 {
		cells = 1
	}
	addr := j.next
	for i := uintptr(0); i < cells; i++ {
		j.memory[addr+jvmattach.Address(i*pointerSize)] = 0
	}
	// A guard cell keeps neighbouring blocks from touching.
	j.next += jvmattach.Address((cells + 1) * pointerSize)
	return addr
}

func (j *JVM) registerLocked(sig jvmattach.Signature, impl func([]uint64) int32) jvmattach.Address {
	addr := j.next
	j.next += jvmattach.Address(pointerSize)
	j.funcs[addr] = &function{sig: sig, impl: impl}
	return addr
}

func (j *JVM) setSlotLocked(slot int, fn jvmattach.Address) {
	j.memory[j.table+jvmattach.Address(uintptr(slot)*pointerSize)] = fn
}
