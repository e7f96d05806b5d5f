package vm

import (
	"runtime"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	jvmattach "github.com/wippyai/jvm-attach"
	"github.com/wippyai/jvm-attach/env"
	"github.com/wippyai/jvm-attach/errors"
	"github.com/wippyai/jvm-attach/vtable"
)

// JNI interface versions accepted by GetEnv.
const (
	Version1_1 int32 = 0x00010001
	Version1_2 int32 = 0x00010002
	Version1_4 int32 = 0x00010004
	Version1_6 int32 = 0x00010006
	Version1_8 int32 = 0x00010008
	Version9   int32 = 0x00090000
	Version10  int32 = 0x000a0000
	Version19  int32 = 0x00130000
	Version20  int32 = 0x00140000
	Version21  int32 = 0x00150000
)

// DefaultVersion is the interface version requested from GetEnv.
const DefaultVersion = Version1_6

// VM manages attachment of native threads to one Java VM.
// It is safe for concurrent use.
type VM struct {
	platform jvmattach.Platform
	table    *vtable.Table
	logger   *zap.Logger
	attached *registry
	stats    counters
	version  int32
}

// Option configures a VM.
type Option func(*VM)

// WithVersion sets the JNI version passed to GetEnv. It must be one of the
// Version constants; New rejects anything else.
func WithVersion(version int32) Option {
	return func(v *VM) {
		v.version = version
	}
}

// WithLogger overrides the package logger for this VM.
func WithLogger(l *zap.Logger) Option {
	return func(v *VM) {
		v.logger = l
	}
}

// Stats is a snapshot of attachment activity.
type Stats struct {
	Attaches   uint64 // successful AttachCurrentThread calls
	Detaches   uint64 // successful DetachCurrentThread calls
	Reused     uint64 // Perform calls that found the thread already attached
	Suppressed uint64 // Perform exits that skipped detach after PreventDetachDueToClassLoader
}

type counters struct {
	attaches   atomic.Uint64
	detaches   atomic.Uint64
	reused     atomic.Uint64
	suppressed atomic.Uint64
}

// New resolves the invocation interface behind handle and returns a manager
// for it. handle is a JavaVM* owned by the host for the process lifetime.
func New(p jvmattach.Platform, handle jvmattach.Address, opts ...Option) (*VM, error) {
	table, err := vtable.Resolve(p, handle)
	if err != nil {
		return nil, err
	}

	v := &VM{
		platform: p,
		table:    table,
		attached: newRegistry(),
		version:  DefaultVersion,
	}
	for _, opt := range opts {
		opt(v)
	}
	if !knownVersion(v.version) {
		return nil, errors.New(errors.PhaseEnv, errors.KindInvalidInput).
			Operation(vtable.OpGetEnv).
			Value(v.version).
			Detail("unknown JNI version %#x", v.version).
			Build()
	}
	return v, nil
}

func knownVersion(version int32) bool {
	switch version {
	case Version1_1, Version1_2, Version1_4, Version1_6, Version1_8,
		Version9, Version10, Version19, Version20, Version21:
		return true
	}
	return false
}

func (v *VM) log() *zap.Logger {
	if v.logger != nil {
		return v.logger
	}
	return Logger()
}

// Handle returns the JavaVM* this manager was created for.
func (v *VM) Handle() jvmattach.Address {
	return v.table.VM()
}

// Version returns the JNI version requested from GetEnv.
func (v *VM) Version() int32 {
	return v.version
}

// Stats returns a snapshot of the attachment counters.
func (v *VM) Stats() Stats {
	return Stats{
		Attaches:   v.stats.attaches.Load(),
		Detaches:   v.stats.detaches.Load(),
		Reused:     v.stats.reused.Load(),
		Suppressed: v.stats.suppressed.Load(),
	}
}

// AttachedThreads returns the number of threads currently inside a Perform
// scope that attached them.
func (v *VM) AttachedThreads() int {
	return v.attached.len()
}

// Perform runs fn with a JNIEnv valid for the calling OS thread.
//
// If the thread is already attached, by the host or by an enclosing Perform,
// fn runs on the existing attachment and nothing is released afterwards.
// Otherwise the thread is attached first and detached when fn returns or
// panics, unless PreventDetachDueToClassLoader was called in between.
//
// A VM that rejects the configured version fails Perform with a call_failed
// error for "VM::GetEnv" before anything is attached.
//
// When both fn and the cleanup detach fail, the returned error combines them
// with fn's error first. If fn panics, a failed detach is logged and the panic
// continues.
func (v *VM) Perform(fn func(*env.Env) error) (err error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e, err := v.probe()
	if err != nil {
		return err
	}

	if e != nil {
		v.stats.reused.Add(1)
		return fn(e)
	}

	tid, err := v.platform.CurrentThreadID()
	if err != nil {
		return errors.Wrap(errors.PhaseAttach, errors.KindUnsupported, err, "current thread id")
	}

	e, err = v.AttachCurrentThread()
	if err != nil {
		return err
	}
	v.attached.insert(tid)

	returned := false
	defer func() {
		allowed, ok := v.attached.take(tid)
		if !ok {
			// fn detached this thread itself and a nested Perform released it.
			v.log().Debug("attachment released inside action", zap.Uint64("thread", uint64(tid)))
			return
		}
		if !allowed {
			v.stats.suppressed.Add(1)
			v.log().Debug("detach suppressed", zap.Uint64("thread", uint64(tid)))
			return
		}

		derr := v.DetachCurrentThread()
		if derr == nil {
			return
		}
		if !returned {
			v.log().Error("detach after panic failed", zap.Uint64("thread", uint64(tid)), zap.Error(derr))
			return
		}
		err = multierr.Append(err, derr)
	}()

	err = fn(e)
	returned = true
	return err
}

// PerformValue is Perform for actions that produce a value.
func PerformValue[T any](v *VM, fn func(*env.Env) (T, error)) (T, error) {
	var result T
	err := v.Perform(func(e *env.Env) error {
		var err error
		result, err = fn(e)
		return err
	})
	return result, err
}

// AttachCurrentThread attaches the calling OS thread and returns its JNIEnv.
// It does not record the thread for automatic detach; that belongs to Perform.
// The caller must keep the goroutine pinned with runtime.LockOSThread.
func (v *VM) AttachCurrentThread() (*env.Env, error) {
	handle, rc, err := v.withEnvSlot(errors.PhaseAttach, func(penv jvmattach.Address) (int32, error) {
		return v.table.AttachCurrentThread(penv, 0)
	})
	if err != nil {
		return nil, err
	}
	if err := errors.CheckResult(vtable.OpAttachCurrentThread, rc); err != nil {
		return nil, err
	}

	v.stats.attaches.Add(1)
	v.log().Debug("attached thread", zap.Uintptr("env", uintptr(handle)))
	return env.New(handle, v), nil
}

// DetachCurrentThread detaches the calling OS thread.
func (v *VM) DetachCurrentThread() error {
	rc, err := v.table.DetachCurrentThread()
	if err != nil {
		return err
	}
	if err := errors.CheckResult(vtable.OpDetachCurrentThread, rc); err != nil {
		return err
	}

	v.stats.detaches.Add(1)
	v.log().Debug("detached thread")
	return nil
}

// GetEnv returns the JNIEnv of an already attached thread. A thread that is
// not attached yields a call_failed error for "VM::GetEnv".
func (v *VM) GetEnv() (*env.Env, error) {
	handle, rc, err := v.withEnvSlot(errors.PhaseEnv, v.getEnv)
	if err != nil {
		return nil, err
	}
	if err := errors.CheckResult(vtable.OpGetEnv, rc); err != nil {
		return nil, err
	}
	return env.New(handle, v), nil
}

// TryGetEnv is GetEnv that reports a thread without an environment as
// (nil, nil). It only fails when the platform itself does.
func (v *VM) TryGetEnv() (*env.Env, error) {
	handle, rc, err := v.withEnvSlot(errors.PhaseEnv, v.getEnv)
	if err != nil {
		return nil, err
	}
	if rc != errors.JNI_OK {
		return nil, nil
	}
	return env.New(handle, v), nil
}

// PreventDetachDueToClassLoader keeps the calling thread attached for the
// rest of the process when it was attached by an enclosing Perform. Call it
// after loading code that registers a class loader on this thread. It is a
// no-op for threads this manager did not attach.
func (v *VM) PreventDetachDueToClassLoader() {
	tid, err := v.platform.CurrentThreadID()
	if err != nil {
		v.log().Warn("cannot identify thread to keep attached", zap.Error(err))
		return
	}
	if v.attached.suppress(tid) {
		v.log().Debug("thread pinned to VM", zap.Uint64("thread", uint64(tid)))
	}
}

// probe is TryGetEnv for Perform, except that JNI_EVERSION is an error since
// it says nothing about whether the thread is attached.
func (v *VM) probe() (*env.Env, error) {
	handle, rc, err := v.withEnvSlot(errors.PhaseEnv, v.getEnv)
	if err != nil {
		return nil, err
	}
	switch rc {
	case errors.JNI_OK:
		return env.New(handle, v), nil
	case errors.JNI_EVERSION:
		return nil, errors.CallFailed(vtable.OpGetEnv, rc)
	}
	return nil, nil
}

func (v *VM) getEnv(penv jvmattach.Address) (int32, error) {
	return v.table.GetEnv(penv, v.version)
}

// withEnvSlot allocates a scratch JNIEnv* slot, runs call with it and reads
// back the environment when the call returned JNI_OK.
func (v *VM) withEnvSlot(phase errors.Phase, call func(penv jvmattach.Address) (int32, error)) (jvmattach.Address, int32, error) {
	size := v.platform.PointerSize()
	penv, err := v.platform.Alloc(size)
	if err != nil {
		return 0, 0, errors.Wrap(phase, errors.KindAllocation, err, "allocate env slot")
	}
	defer v.platform.Free(penv)

	rc, err := call(penv)
	if err != nil {
		return 0, 0, err
	}
	if rc != errors.JNI_OK {
		return 0, rc, nil
	}

	handle, err := v.platform.ReadPointer(penv)
	if err != nil {
		return 0, rc, errors.Wrap(phase, errors.KindOutOfBounds, err, "read env slot")
	}
	return handle, rc, nil
}
