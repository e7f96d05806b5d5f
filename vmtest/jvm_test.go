package vmtest

import (
	"errors"
	"testing"

	jvmattach "github.com/wippyai/jvm-attach"
	jvmerrors "github.com/wippyai/jvm-attach/errors"
	"github.com/wippyai/jvm-attach/internal/thread"
	"github.com/wippyai/jvm-attach/vtable"
)

func requireThreadIDs(t *testing.T) {
	t.Helper()
	if _, err := thread.Current(); errors.Is(err, thread.ErrUnsupported) {
		t.Skip("thread ids unsupported on this platform")
	}
}

func TestJVM_TableLayout(t *testing.T) {
	j := New()

	table, err := j.ReadPointer(j.Handle())
	if err != nil {
		t.Fatalf("ReadPointer(handle) failed: %v", err)
	}
	if table != j.Table() {
		t.Fatalf("handle points to %#x, want %#x", table, j.Table())
	}

	for slot := 0; slot < 3; slot++ {
		fn, err := j.ReadPointer(table + jvmattach.Address(uintptr(slot)*j.PointerSize()))
		if err != nil {
			t.Fatalf("slot %d unreadable: %v", slot, err)
		}
		if fn != 0 {
			t.Errorf("reserved slot %d = %#x, want null", slot, fn)
		}
	}

	checks := []struct {
		slot int
		sig  jvmattach.Signature
	}{
		{vtable.SlotAttachCurrentThread, vtable.AttachCurrentThreadSig},
		{vtable.SlotDetachCurrentThread, vtable.DetachCurrentThreadSig},
		{vtable.SlotGetEnv, vtable.GetEnvSig},
	}
	for _, c := range checks {
		fn, err := j.ReadPointer(table + jvmattach.Address(uintptr(c.slot)*j.PointerSize()))
		if err != nil {
			t.Fatalf("slot %d unreadable: %v", c.slot, err)
		}
		if _, err := j.Bind(fn, c.sig); err != nil {
			t.Errorf("Bind(slot %d) failed: %v", c.slot, err)
		}
	}
}

func TestJVM_BindRejectsWrongSignature(t *testing.T) {
	j := New()
	fn, _ := j.ReadPointer(j.Table() + jvmattach.Address(uintptr(vtable.SlotGetEnv)*j.PointerSize()))

	_, err := j.Bind(fn, vtable.DetachCurrentThreadSig)
	if !errors.Is(err, &jvmerrors.Error{Phase: jvmerrors.PhasePlatform, Kind: jvmerrors.KindSignatureMismatch}) {
		t.Fatalf("expected signature mismatch, got %v", err)
	}

	_, err = j.Bind(0xdead, vtable.GetEnvSig)
	if !errors.Is(err, &jvmerrors.Error{Phase: jvmerrors.PhasePlatform, Kind: jvmerrors.KindOutOfBounds}) {
		t.Fatalf("expected out of bounds, got %v", err)
	}
}

func TestJVM_AllocFree(t *testing.T) {
	j := New()

	a, _ := j.Alloc(j.PointerSize())
	b, _ := j.Alloc(3 * j.PointerSize())
	if a == b {
		t.Fatal("allocations overlap")
	}
	if j.LiveAllocations() != 2 {
		t.Fatalf("LiveAllocations = %d, want 2", j.LiveAllocations())
	}

	if v, err := j.ReadPointer(b + jvmattach.Address(2*j.PointerSize())); err != nil || v != 0 {
		t.Fatalf("fresh memory = %#x, %v; want zeroed", v, err)
	}

	j.Free(a)
	j.Free(b)
	j.Free(b)
	if j.LiveAllocations() != 0 {
		t.Fatalf("LiveAllocations = %d after free, want 0", j.LiveAllocations())
	}
	if _, err := j.ReadPointer(a); err == nil {
		t.Fatal("freed memory should be unmapped")
	}
}

func TestJVM_AttachGetEnvDetach(t *testing.T) {
	requireThreadIDs(t)
	j := New()

	OnThread(func() {
		table, err := vtable.Resolve(j, j.Handle())
		if err != nil {
			t.Errorf("Resolve failed: %v", err)
			return
		}
		tid, _ := j.CurrentThreadID()
		penv, _ := j.Alloc(j.PointerSize())
		defer j.Free(penv)

		if rc, _ := table.GetEnv(penv, 0x00010006); rc != jvmerrors.JNI_EDETACHED {
			t.Errorf("GetEnv before attach = %d, want JNI_EDETACHED", rc)
		}
		if rc, _ := table.AttachCurrentThread(penv, 0); rc != jvmerrors.JNI_OK {
			t.Errorf("AttachCurrentThread = %d", rc)
		}
		attachedEnv, _ := j.ReadPointer(penv)
		if attachedEnv == 0 || attachedEnv != j.EnvOf(tid) {
			t.Errorf("env written = %#x, want %#x", attachedEnv, j.EnvOf(tid))
		}
		if rc, _ := table.GetEnv(penv, 0x7fff0000); rc != jvmerrors.JNI_EVERSION {
			t.Errorf("GetEnv with bogus version = %d, want JNI_EVERSION", rc)
		}
		if rc, _ := table.DetachCurrentThread(); rc != jvmerrors.JNI_OK {
			t.Errorf("DetachCurrentThread = %d", rc)
		}
		if j.IsAttached(tid) {
			t.Error("thread still attached after detach")
		}

		got := j.CountsFor(tid)
		if got != (Counts{Attach: 1, Detach: 1, GetEnv: 2}) {
			t.Errorf("counts = %+v", got)
		}
	})
}

func TestJVM_Injection(t *testing.T) {
	requireThreadIDs(t)
	j := New()

	OnThread(func() {
		table, err := vtable.Resolve(j, j.Handle())
		if err != nil {
			t.Errorf("Resolve failed: %v", err)
			return
		}

		j.FailNext(vtable.OpDetachCurrentThread, jvmerrors.JNI_ERR)
		if rc, _ := table.DetachCurrentThread(); rc != jvmerrors.JNI_ERR {
			t.Errorf("injected failure not returned, got %d", rc)
		}
		if rc, _ := table.DetachCurrentThread(); rc != jvmerrors.JNI_OK {
			t.Errorf("failure should be one-shot, got %d", rc)
		}

		j.FaultNext(vtable.OpDetachCurrentThread, "access violation")
		_, err = table.DetachCurrentThread()
		if !errors.Is(err, &jvmerrors.Error{Phase: jvmerrors.PhaseDetach, Kind: jvmerrors.KindFault}) {
			t.Errorf("expected fault error, got %v", err)
		}
	})
}
