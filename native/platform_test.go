//go:build cgo && (linux || darwin)

package native

import (
	"errors"
	"testing"
	"unsafe"

	jvmattach "github.com/wippyai/jvm-attach"
	"github.com/wippyai/jvm-attach/env"
	jvmerrors "github.com/wippyai/jvm-attach/errors"
	"github.com/wippyai/jvm-attach/internal/thread"
	"github.com/wippyai/jvm-attach/vm"
	"github.com/wippyai/jvm-attach/vmtest"
	"github.com/wippyai/jvm-attach/vtable"
)

func TestPlatform_AllocReadWrite(t *testing.T) {
	p := New()
	if p.PointerSize() != unsafe.Sizeof(uintptr(0)) {
		t.Fatalf("PointerSize = %d", p.PointerSize())
	}

	addr, err := p.Alloc(p.PointerSize())
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	defer p.Free(addr)

	v, err := p.ReadPointer(addr)
	if err != nil || v != 0 {
		t.Fatalf("fresh memory = %#x, %v; want zeroed", v, err)
	}

	if err := p.WritePointer(addr, 0xcafe); err != nil {
		t.Fatalf("WritePointer failed: %v", err)
	}
	v, err = p.ReadPointer(addr)
	if err != nil || v != 0xcafe {
		t.Fatalf("ReadPointer = %#x, %v; want 0xcafe", v, err)
	}
}

func TestPlatform_NullAccess(t *testing.T) {
	p := New()

	_, err := p.ReadPointer(0)
	if !errors.Is(err, &jvmerrors.Error{Phase: jvmerrors.PhasePlatform, Kind: jvmerrors.KindNilPointer}) {
		t.Errorf("ReadPointer(0) = %v", err)
	}
	if err := p.WritePointer(0, 1); !errors.Is(err, &jvmerrors.Error{Phase: jvmerrors.PhasePlatform, Kind: jvmerrors.KindNilPointer}) {
		t.Errorf("WritePointer(0) = %v", err)
	}
}

func TestPlatform_ReadFault(t *testing.T) {
	p := New()

	_, err := p.ReadPointer(0x8)
	if !errors.Is(err, &jvmerrors.Error{Phase: jvmerrors.PhasePlatform, Kind: jvmerrors.KindFault}) {
		t.Fatalf("expected fault, got %v", err)
	}
}

func TestPlatform_Bind(t *testing.T) {
	p := New()

	for _, sig := range []jvmattach.Signature{vtable.AttachCurrentThreadSig, vtable.DetachCurrentThreadSig, vtable.GetEnvSig} {
		if _, err := p.Bind(0x1000, sig); err != nil {
			t.Errorf("Bind(%s) failed: %v", sig, err)
		}
	}

	unsupported := jvmattach.Signature{Params: []jvmattach.ValueType{jvmattach.ValueTypeInt32}, Result: jvmattach.ValueTypeInt32}
	if _, err := p.Bind(0x1000, unsupported); !errors.Is(err, &jvmerrors.Error{Phase: jvmerrors.PhasePlatform, Kind: jvmerrors.KindUnsupported}) {
		t.Errorf("Bind(%s) = %v, want unsupported", unsupported, err)
	}

	stdcall := vtable.DetachCurrentThreadSig
	stdcall.Conv = jvmattach.CallConvStdcall
	if _, err := p.Bind(0x1000, stdcall); err == nil {
		t.Error("stdcall must be rejected")
	}

	if _, err := p.Bind(0, vtable.GetEnvSig); err == nil {
		t.Error("null function must be rejected")
	}

	fn, _ := p.Bind(0x1000, vtable.GetEnvSig)
	if _, err := fn.Call(1, 2); err == nil {
		t.Error("wrong argument count must be rejected before calling")
	}
}

func TestPlatform_PerformOverStubVM(t *testing.T) {
	if _, err := thread.Current(); err != nil {
		t.Skipf("thread ids unavailable: %v", err)
	}

	handle := stubJavaVM()
	machine, err := vm.New(New(), handle, vm.WithVersion(vm.Version1_8))
	if err != nil {
		t.Fatalf("vm.New failed: %v", err)
	}

	vmtest.OnThread(func() {
		err := machine.Perform(func(e *env.Env) error {
			if e.Handle() != stubEnv {
				t.Errorf("env = %#x, want %#x", e.Handle(), stubEnv)
			}
			if !stubAttached() {
				t.Error("thread not attached inside Perform")
			}
			return nil
		})
		if err != nil {
			t.Errorf("Perform failed: %v", err)
		}
		if stubAttached() {
			t.Error("thread still attached after Perform")
		}
	})

	if got := stubLastVersion(); got != vm.Version1_8 {
		t.Errorf("GetEnv saw version %#x, want %#x", got, vm.Version1_8)
	}
	if a, d := stubCounts(); a != 1 || d != 1 {
		t.Errorf("attaches=%d detaches=%d, want 1 and 1", a, d)
	}
	if s := machine.Stats(); s.Attaches != 1 || s.Detaches != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestPlatform_NegativeResultCodes(t *testing.T) {
	if _, err := thread.Current(); err != nil {
		t.Skipf("thread ids unavailable: %v", err)
	}

	handle := stubJavaVM()
	machine, err := vm.New(New(), handle)
	if err != nil {
		t.Fatalf("vm.New failed: %v", err)
	}

	vmtest.OnThread(func() {
		stubFailAttach(jvmerrors.JNI_ENOMEM)
		err := machine.Perform(func(*env.Env) error {
			t.Error("action ran without an attachment")
			return nil
		})
		cf, ok := jvmerrors.AsCallFailed(err)
		if !ok || cf.Operation != vtable.OpAttachCurrentThread || cf.Code != jvmerrors.JNI_ENOMEM {
			t.Errorf("expected AttachCurrentThread JNI_ENOMEM, got %v", err)
		}
	})

	table, err := vtable.Resolve(New(), handle)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	p := New()
	penv, err := p.Alloc(p.PointerSize())
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	defer p.Free(penv)

	rc, err := table.GetEnv(penv, -1)
	if err != nil {
		t.Fatalf("GetEnv failed: %v", err)
	}
	if rc != jvmerrors.JNI_EVERSION {
		t.Errorf("rc = %d, want %d", rc, jvmerrors.JNI_EVERSION)
	}
	if got := stubLastVersion(); got != -1 {
		t.Errorf("GetEnv saw version %d, want -1", got)
	}
}

func TestPlatform_CurrentThreadID(t *testing.T) {
	tid, err := New().CurrentThreadID()
	if err != nil {
		t.Skipf("thread ids unavailable: %v", err)
	}
	if tid == 0 {
		t.Error("expected non-zero thread id")
	}
}

func TestCreatedJavaVM_MissingLibrary(t *testing.T) {
	_, err := CreatedJavaVM("/nonexistent/libjvm.so")
	if !errors.Is(err, &jvmerrors.Error{Phase: jvmerrors.PhasePlatform, Kind: jvmerrors.KindInvalidInput}) {
		t.Fatalf("expected dlopen failure, got %v", err)
	}
}
